package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/facebookgo/grace/gracehttp"
	"github.com/gorilla/websocket"

	"github.com/airenas/go-app/pkg/goapp"

	"github.com/labstack/echo-contrib/prometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/airenas/rt-caption-assistant/internal/api"
	"github.com/airenas/rt-caption-assistant/internal/assist"
	"github.com/airenas/rt-caption-assistant/internal/domain"
	"github.com/airenas/rt-caption-assistant/internal/reconcile"
	"github.com/airenas/rt-caption-assistant/internal/utils"
)

// Transcriber is the caption engine
type Transcriber interface {
	ReportCaption(ctx context.Context, speaker, rawText, origin string) (reconcile.Outcome, error)
	Lines() []domain.Line
	IsFixed(l domain.Line) bool
	Clear()
}

// Assistant generates suggestions and corrections
type Assistant interface {
	ManualReply(ctx context.Context) (assist.Ticket, error)
	ReplyToLine(id uint64) (assist.Ticket, error)
	ReplyToText(text string) assist.Ticket
	AutoCorrect(ctx context.Context) (assist.CorrectReport, error)
	Settings() domain.Settings
	ApplySettings(s domain.Settings)
}

// SettingsSaver persists settings
type SettingsSaver interface {
	SaveSettings(ctx context.Context, s *domain.Settings) error
}

// Data keeps data required for service work
type Data struct {
	Port        int
	SessionID   string
	Transcriber Transcriber
	Assistant   Assistant
	Settings    SettingsSaver
	Hub         *Hub
	Ctx         context.Context
}

// StartWebServer starts echo web service
func StartWebServer(data *Data) (<-chan struct{}, error) {
	goapp.Log.Info().Msgf("Starting caption assistant service at %d", data.Port)
	if err := validate(data); err != nil {
		return nil, err
	}

	portStr := strconv.Itoa(data.Port)

	e := initRoutes(data)

	e.Server.Addr = ":" + portStr
	e.Server.ReadHeaderTimeout = 5 * time.Second
	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 10 * time.Second

	gracehttp.SetLogger(log.New(goapp.Log, "", 0))

	res := make(chan struct{}, 1)
	go func() {
		defer close(res)
		if err := gracehttp.Serve(e.Server); err != nil {
			goapp.Log.Error().Err(err).Msg("can't start web server")
		}
		goapp.Log.Info().Msg("exit http routine")
	}()
	return res, nil
}

var promMdlw *prometheus.Prometheus

func init() {
	promMdlw = prometheus.NewPrometheus("caption_assistant", nil)
}

func initRoutes(data *Data) *echo.Echo {
	e := echo.New()
	e.Use(middleware.Logger())
	promMdlw.Use(e)

	e.GET("/live", live(data))
	e.POST("/caption", caption(data))
	e.GET("/transcript", getTranscript(data))
	e.DELETE("/transcript", clearTranscript(data))
	e.POST("/reply", reply(data))
	e.POST("/correct", correct(data))
	e.GET("/settings", getSettings(data))
	e.PUT("/settings", putSettings(data))
	e.GET("/client/ws/events", subscribe(data))

	goapp.Log.Info().Msg("Routes:")
	for _, r := range e.Routes() {
		goapp.Log.Info().Msgf("  %s %s", r.Method, r.Path)
	}
	return e
}

func live(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		return c.JSONBlob(http.StatusOK, []byte(`{"service":"OK"}`))
	}
}

func caption(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		var tick api.CaptionTick
		if err := c.Bind(&tick); err != nil {
			goapp.Log.Error().Err(err).Msg("can't bind caption")
			return echo.NewHTTPError(http.StatusBadRequest, "wrong caption")
		}
		res, err := report(c.Request().Context(), data, &tick)
		if err != nil {
			goapp.Log.Error().Err(err).Msg("report caption")
			return echo.NewHTTPError(http.StatusInternalServerError)
		}
		return c.JSON(http.StatusOK, res)
	}
}

func report(ctx context.Context, data *Data, tick *api.CaptionTick) (*api.TickResult, error) {
	out, err := data.Transcriber.ReportCaption(ctx, tick.Speaker, tick.Text, tick.Origin)
	if err != nil {
		return nil, err
	}
	res := &api.TickResult{Action: out.Action, Reason: out.Reason}
	if out.Line != nil {
		v := api.ToView(*out.Line, data.Transcriber.IsFixed(*out.Line))
		res.Line = &v
	}
	return res, nil
}

func getTranscript(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		lines := data.Transcriber.Lines()
		res := api.TranscriptResponse{Lines: make([]api.LineView, 0, len(lines))}
		for _, l := range lines {
			res.Lines = append(res.Lines, api.ToView(l, data.Transcriber.IsFixed(l)))
		}
		return c.JSON(http.StatusOK, res)
	}
}

func clearTranscript(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		data.Transcriber.Clear()
		return c.NoContent(http.StatusNoContent)
	}
}

func reply(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		var input api.ReplyRequest
		if err := c.Bind(&input); err != nil {
			goapp.Log.Error().Err(err).Msg("can't bind reply")
			return echo.NewHTTPError(http.StatusBadRequest, "wrong request")
		}
		var (
			tk  assist.Ticket
			err error
		)
		switch {
		case input.LineID > 0:
			tk, err = data.Assistant.ReplyToLine(input.LineID)
		case input.Text != "":
			tk = data.Assistant.ReplyToText(input.Text)
		default:
			tk, err = data.Assistant.ManualReply(data.Ctx)
		}
		if err != nil {
			if errors.Is(err, assist.ErrNotFound) {
				return echo.NewHTTPError(http.StatusNotFound, err.Error())
			}
			if errors.Is(err, assist.ErrNothing) {
				return echo.NewHTTPError(http.StatusBadRequest, err.Error())
			}
			goapp.Log.Error().Err(err).Msg("reply")
			return echo.NewHTTPError(http.StatusInternalServerError)
		}
		return c.JSON(http.StatusOK, api.ReplyResponse{RequestID: tk.RequestID, Reason: tk.Reason})
	}
}

func correct(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		ctx, cd := utils.CustomContext(c.Request().Context())
		cd.Label = "correct"
		rep, err := data.Assistant.AutoCorrect(ctx)
		if err != nil {
			if errors.Is(err, assist.ErrNoRewriter) {
				return echo.NewHTTPError(http.StatusBadRequest, err.Error())
			}
			goapp.Log.Error().Err(err).Msg("correct")
			return echo.NewHTTPError(http.StatusInternalServerError)
		}
		return c.JSON(http.StatusOK, api.CorrectResponse{Attempted: rep.Attempted, Fixed: rep.Fixed,
			Failed: rep.Failed, TimedOut: rep.TimedOut})
	}
}

func getSettings(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		res := data.Assistant.Settings()
		res.ID = data.SessionID
		return c.JSON(http.StatusOK, res)
	}
}

func putSettings(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		var input api.SettingsRequest
		if err := c.Bind(&input); err != nil {
			goapp.Log.Error().Err(err).Msg("can't bind settings")
			return echo.NewHTTPError(http.StatusBadRequest, "wrong settings")
		}
		res := data.Assistant.Settings()
		res.ID = data.SessionID
		if input.AutoReply != nil {
			res.AutoReply = *input.AutoReply
		}
		if input.AutoCorrect != nil {
			res.AutoCorrect = *input.AutoCorrect
		}
		data.Assistant.ApplySettings(res)
		if err := data.Settings.SaveSettings(c.Request().Context(), &res); err != nil {
			goapp.Log.Error().Err(err).Msg("save settings")
			return echo.NewHTTPError(http.StatusInternalServerError)
		}
		return c.JSON(http.StatusOK, res)
	}
}

func validate(data *Data) error {
	if data.Transcriber == nil {
		return fmt.Errorf("no Transcriber")
	}
	if data.Assistant == nil {
		return fmt.Errorf("no Assistant")
	}
	if data.Settings == nil {
		return fmt.Errorf("no Settings")
	}
	if data.Hub == nil {
		return fmt.Errorf("no Hub")
	}
	if data.Ctx == nil {
		return fmt.Errorf("no Ctx")
	}
	return nil
}

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	}}

func subscribe(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		ws, err := wsUpgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			goapp.Log.Error().Err(err).Send()
			return err
		}
		defer ws.Close()

		return data.Hub.HandleConnection(data.Ctx, ws, func(ctx context.Context, msg []byte) error {
			var tick api.CaptionTick
			if err := json.Unmarshal(msg, &tick); err != nil {
				return fmt.Errorf("decode caption: %w", err)
			}
			_, err := report(ctx, data, &tick)
			return err
		})
	}
}
