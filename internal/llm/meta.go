package llm

import (
	"regexp"
	"strings"
)

var (
	thinkRegexp     = regexp.MustCompile(`(?is)<think>.*?</think>`)
	openThinkRegexp = regexp.MustCompile(`(?is)<think>.*$`)
	metaLineRegexp  = regexp.MustCompile(`(?i)^[*_#>\s]*(analysis|an[aá]lise|notes?|notas?|observa[çc](ão|ao|ões|oes)|reasoning|racioc[ií]nio|thoughts?|contexto?)[*_\s]*:`)
	routeRegexp     = regexp.MustCompile(`(?im)^[*_#>\-\s]*(positive|positiva|positivo|negative|negativa|negativo)[*_\s]*[:\-][*_]*\s*`)
)

// StripMeta removes reasoning blocks and "Analysis:/Notes:" preamble lines models put before the answer
func StripMeta(s string) string {
	s = thinkRegexp.ReplaceAllString(s, "")
	s = openThinkRegexp.ReplaceAllString(s, "")
	lines := strings.Split(s, "\n")
	i := 0
	for ; i < len(lines); i++ {
		l := strings.TrimSpace(lines[i])
		if l != "" && !metaLineRegexp.MatchString(l) {
			break
		}
	}
	res := strings.TrimSpace(strings.Join(lines[i:], "\n"))
	if len(res) > 1 && strings.HasPrefix(res, `"`) && strings.HasSuffix(res, `"`) && strings.Count(res, `"`) == 2 {
		res = strings.TrimSpace(res[1 : len(res)-1])
	}
	return res
}

// splitRoutes splits free model text by "Positive:" and "Negative:" labels.
// Text without labels goes to the positive route.
func splitRoutes(s string) map[string]string {
	idx := routeRegexp.FindAllStringSubmatchIndex(s, -1)
	if len(idx) == 0 {
		return map[string]string{RoutePositive: strings.TrimSpace(s)}
	}
	res := map[string]string{}
	for i, m := range idx {
		end := len(s)
		if i+1 < len(idx) {
			end = idx[i+1][0]
		}
		route := RoutePositive
		if strings.HasPrefix(strings.ToLower(s[m[2]:m[3]]), "neg") {
			route = RouteNegative
		}
		if _, ok := res[route]; ok {
			continue
		}
		res[route] = StripMeta(strings.TrimSpace(strings.TrimRight(s[m[1]:end], "*_ \n")))
	}
	return res
}
