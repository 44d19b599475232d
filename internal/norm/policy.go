package norm

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// Policy keeps locale and platform dependent word lists
type Policy struct {
	unknown   map[string]bool
	fillers   map[string]bool
	chrome    []*regexp.Regexp
	internal  []*regexp.Regexp
	questions []string
}

// PolicyConfig is the yaml form of a Policy
type PolicyConfig struct {
	Replace          bool     `yaml:"replace"`
	UnknownSpeakers  []string `yaml:"unknownSpeakers"`
	Fillers          []string `yaml:"fillers"`
	Chrome           []string `yaml:"chrome"`
	Internal         []string `yaml:"internal"`
	QuestionPrefixes []string `yaml:"questionPrefixes"`
}

var defaultPolicyConfig = PolicyConfig{
	UnknownSpeakers: []string{"", "unknown", "desconhecido", "participante", "speaker", "orador"},
	Fillers:         []string{"uh", "uhm", "um", "umm", "hm", "hmm", "hmmm", "ah", "ahn", "eh", "uhum", "hum", "né"},
	Chrome: []string{
		`^rtt\b`,
		`pol[ií]tica de privacidade`,
		`privacy (policy|statement)`,
		`digite uma mensagem`,
		`type a (new )?message`,
		`legendas ao vivo`,
		`live captions`,
		`configura[çc](õ|o)es da legenda`,
		`caption settings`,
		`^(responder|reply|respostas|replies)\s*\(?\d*\)?$`,
		`^\(?\d+\)?$`,
	},
	Internal: []string{
		`^MT\b`,
		`^[^:]{1,60}\([^)]{1,30}\)\s*:`,
		`(?i)^(question|answer|pergunta|resposta)\s*:`,
	},
	QuestionPrefixes: []string{
		"what", "why", "how", "when", "where", "who", "which", "can", "could", "would", "should", "do", "does", "did", "is", "are",
		"o que", "por que", "porque", "como", "quando", "onde", "quem", "qual", "quais", "quanto", "pode", "poderia", "será", "você", "vocês",
	},
}

var initialsRegexp = regexp.MustCompile(`^[A-Z]{1,3}$`)

// DefaultPolicy returns pt + en policy
func DefaultPolicy() *Policy {
	res, err := NewPolicy(defaultPolicyConfig)
	if err != nil {
		panic(err)
	}
	return res
}

// NewPolicy compiles policy from config
func NewPolicy(cfg PolicyConfig) (*Policy, error) {
	res := &Policy{unknown: map[string]bool{}, fillers: map[string]bool{}}
	for _, s := range cfg.UnknownSpeakers {
		res.unknown[Name(s)] = true
	}
	for _, s := range cfg.Fillers {
		res.fillers[Key(s)] = true
	}
	for _, s := range cfg.Chrome {
		r, err := regexp.Compile("(?i)" + s)
		if err != nil {
			return nil, fmt.Errorf("chrome pattern %q: %w", s, err)
		}
		res.chrome = append(res.chrome, r)
	}
	for _, s := range cfg.Internal {
		r, err := regexp.Compile(s)
		if err != nil {
			return nil, fmt.Errorf("internal pattern %q: %w", s, err)
		}
		res.internal = append(res.internal, r)
	}
	for _, s := range cfg.QuestionPrefixes {
		res.questions = append(res.questions, Key(s))
	}
	return res, nil
}

// LoadPolicy reads yaml file. The lists extend the default policy unless `replace: true` is set
func LoadPolicy(file string) (*Policy, error) {
	bytes, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", file, err)
	}
	return ParsePolicy(bytes)
}

// ParsePolicy parses yaml policy
func ParsePolicy(data []byte) (*Policy, error) {
	var cfg PolicyConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse policy: %w", err)
	}
	if !cfg.Replace {
		d := defaultPolicyConfig
		cfg.UnknownSpeakers = append(append([]string{}, d.UnknownSpeakers...), cfg.UnknownSpeakers...)
		cfg.Fillers = append(append([]string{}, d.Fillers...), cfg.Fillers...)
		cfg.Chrome = append(append([]string{}, d.Chrome...), cfg.Chrome...)
		cfg.Internal = append(append([]string{}, d.Internal...), cfg.Internal...)
		cfg.QuestionPrefixes = append(append([]string{}, d.QuestionPrefixes...), cfg.QuestionPrefixes...)
	}
	return NewPolicy(cfg)
}

// IsUnknownSpeaker checks for placeholder speaker names
func (p *Policy) IsUnknownSpeaker(name string) bool {
	return p.unknown[Name(name)]
}

// IsChrome checks for platform UI texts scraped by mistake
func (p *Policy) IsChrome(text string) bool {
	t := Whitespace(text)
	if initialsRegexp.MatchString(t) {
		return true
	}
	for _, r := range p.chrome {
		if r.MatchString(t) {
			return true
		}
	}
	return false
}

// IsNoise checks if text is not worth a transcript line
func (p *Policy) IsNoise(text string) bool {
	t := Key(text)
	if t == "" || utf8.RuneCountInString(t) <= 2 {
		return true
	}
	if strings.IndexFunc(t, func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }) < 0 {
		return true
	}
	if p.fillers[strings.TrimRightFunc(t, unicode.IsPunct)] {
		return true
	}
	return p.IsChrome(text)
}

// IsInternal checks for diagnostic or injected text
func (p *Policy) IsInternal(text string) bool {
	t := Whitespace(text)
	for _, r := range p.internal {
		if r.MatchString(t) {
			return true
		}
	}
	return false
}

// LooksLikeQuestion is a rough question detector
func (p *Policy) LooksLikeQuestion(text string) bool {
	t := Key(text)
	if t == "" {
		return false
	}
	if strings.HasSuffix(t, "?") {
		return true
	}
	for _, q := range p.questions {
		if strings.HasPrefix(t, q+" ") {
			return true
		}
	}
	return false
}
