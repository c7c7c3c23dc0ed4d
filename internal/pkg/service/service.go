package service

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/facebookgo/grace/gracehttp"
	"github.com/pkg/errors"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/airenas/talkback/internal/pkg/api"
	"github.com/airenas/talkback/internal/pkg/utils"

	"github.com/labstack/echo-contrib/prometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Runner runs the pipeline
type Runner interface {
	Run(ctx context.Context, sourceURI string) (*api.Result, error)
	RunText(ctx context.Context, text string) (*api.Result, error)
}

// AudioStore provides local audio files
type AudioStore interface {
	Path(name string) (string, error)
	Delete(name string) (bool, error)
	DefaultName() string
}

// FileSaver saves uploaded audio
type FileSaver interface {
	Put(ctx context.Context, bucket, key string, data []byte, contentType string) error
}

// Data keeps data required for service work
type Data struct {
	Port        int
	Runner      Runner
	Audio       AudioStore
	Saver       FileSaver
	InputBucket string
	BodyLimit   string
	Timeout     time.Duration
	Info        *api.PipelineInfo
}

// StartWebServer starts echo web service
func StartWebServer(data *Data) error {
	goapp.Log.Info().Msgf("Starting HTTP talkback service at %d", data.Port)
	if err := validate(data); err != nil {
		return err
	}

	portStr := strconv.Itoa(data.Port)

	e := initRoutes(data)

	e.Server.Addr = ":" + portStr
	e.Server.ReadHeaderTimeout = 5 * time.Second
	e.Server.ReadTimeout = 60 * time.Second
	e.Server.WriteTimeout = data.Timeout + 30*time.Second

	gracehttp.SetLogger(log.New(goapp.Log, "", 0))

	return gracehttp.Serve(e.Server)
}

func validate(data *Data) error {
	if data.Runner == nil {
		return errors.New("no pipeline runner")
	}
	if data.Audio == nil {
		return errors.New("no audio store")
	}
	if data.Saver == nil {
		return errors.New("no file saver")
	}
	if data.InputBucket == "" {
		return errors.New("no input bucket")
	}
	if data.Info == nil {
		return errors.New("no pipeline info")
	}
	return nil
}

var promMdlw *prometheus.Prometheus

func init() {
	promMdlw = prometheus.NewPrometheus("talkback", nil)
}

func initRoutes(data *Data) *echo.Echo {
	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.BodyLimit(defaultS(data.BodyLimit, "50M")))
	promMdlw.Use(e)

	e.POST("/upload-to-s3", upload(data))
	e.POST("/process-text", processText(data))
	e.POST("/delete-audio", deleteAudio(data))
	e.GET("/pipeline-status", pipelineStatus(data))
	e.GET("/audio/:file", downloadAudio(data))
	e.HEAD("/audio/:file", downloadAudio(data))
	e.GET("/live", live(data))

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

type response struct {
	Success         bool      `json:"success"`
	Message         string    `json:"message"`
	FileName        string    `json:"fileName,omitempty"`
	InputText       string    `json:"inputText,omitempty"`
	TranscribedText string    `json:"transcribedText,omitempty"`
	AIResponse      string    `json:"aiResponse,omitempty"`
	AudioFile       string    `json:"audioFile,omitempty"`
	AudioLocator    string    `json:"audioLocator,omitempty"`
	RunID           string    `json:"runId,omitempty"`
	Stage           api.Stage `json:"stage,omitempty"`
	Error           string    `json:"error,omitempty"`
}

func upload(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		defer goapp.Estimate("upload method")()
		ctx := c.Request().Context()

		form, err := c.MultipartForm()
		if err != nil {
			return failUpload(c, "no multipart form data")
		}
		defer cleanFiles(form)

		file, handler, err := takeFile(form, api.PrmAudio)
		if err != nil {
			return failUpload(c, "no audio file")
		}
		defer file.Close()
		ext := filepath.Ext(handler.Filename)
		if !utils.SupportAudioExt(ext) {
			return failUpload(c, "wrong file extension: "+ext)
		}
		fn, err := utils.MakeValidateFileName("", handler.Filename)
		if err != nil {
			return failUpload(c, "wrong file name: "+handler.Filename)
		}
		audio, err := io.ReadAll(file)
		if err != nil {
			goapp.Log.Error().Err(err).Send()
			return failUpload(c, "can't read file")
		}
		if len(audio) == 0 {
			return failUpload(c, "empty file")
		}
		key := utils.NewID("upload") + "-" + fn
		if err := data.Saver.Put(ctx, data.InputBucket, key, audio, handler.Header.Get(echo.HeaderContentType)); err != nil {
			goapp.Log.Error().Err(err).Send()
			return failUpload(c, "can't upload file")
		}
		goapp.Log.Info().Str("key", key).Int("size", len(audio)).Msg("uploaded")

		src := api.Locator{Bucket: data.InputBucket, Key: key}
		res, err := data.Runner.Run(ctx, src.String())
		if err != nil {
			return failRun(c, res, err, response{FileName: key})
		}
		return c.JSON(http.StatusOK, response{Success: true, Message: "File uploaded and processed",
			FileName: key, TranscribedText: res.RecognizedText, AIResponse: res.GeneratedText,
			AudioFile: res.AudioFile, AudioLocator: res.AudioLocator, RunID: res.RunID})
	}
}

type textInput struct {
	Text string `json:"text"`
}

func processText(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		defer goapp.Estimate("process text method")()

		var input textInput
		if err := c.Bind(&input); err != nil {
			goapp.Log.Error().Err(err).Send()
			return failUpload(c, "can't parse input")
		}
		if input.Text == "" {
			return failUpload(c, "no text")
		}
		res, err := data.Runner.RunText(c.Request().Context(), input.Text)
		if err != nil {
			return failRun(c, res, err, response{InputText: input.Text})
		}
		return c.JSON(http.StatusOK, response{Success: true, Message: "Text processed", InputText: input.Text,
			AIResponse: res.GeneratedText, AudioFile: res.AudioFile, AudioLocator: res.AudioLocator, RunID: res.RunID})
	}
}

type deleteInput struct {
	FileName string `json:"filename"`
}

func deleteAudio(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		defer goapp.Estimate("delete method")()

		var input deleteInput
		if c.Request().ContentLength != 0 {
			if err := c.Bind(&input); err != nil {
				goapp.Log.Error().Err(err).Send()
				return failUpload(c, "can't parse input")
			}
		}
		name := defaultS(input.FileName, data.Audio.DefaultName())
		if !utils.IsPlainName(name) {
			return failUpload(c, "wrong file name")
		}
		ok, err := data.Audio.Delete(name)
		if err != nil {
			goapp.Log.Error().Err(err).Send()
			return c.JSON(http.StatusInternalServerError, response{Success: false, Message: "can't delete file"})
		}
		msg := fmt.Sprintf("Audio file %s deleted", name)
		if !ok {
			msg = fmt.Sprintf("Audio file %s not found", name)
		}
		return c.JSON(http.StatusOK, response{Success: true, Message: msg})
	}
}

type statusResponse struct {
	Status string `json:"status"`
	*api.PipelineInfo
}

func pipelineStatus(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, statusResponse{Status: "ready", PipelineInfo: data.Info})
	}
}

func downloadAudio(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		defer goapp.Estimate("download method")()

		name := c.Param("file")
		p, err := data.Audio.Path(name)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Wrong name")
		}
		return serveFile(c, p)
	}
}

func serveFile(c echo.Context, name string) error {
	goapp.Log.Info().Str("file", name).Msg("loading")
	file, err := os.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return echo.NewHTTPError(http.StatusNotFound, "not found")
		}
		goapp.Log.Error().Err(err).Send()
		return echo.NewHTTPError(http.StatusInternalServerError, "Can't get file")
	}
	defer file.Close()
	stat, err := file.Stat()
	if err != nil {
		goapp.Log.Error().Err(err).Send()
		return echo.NewHTTPError(http.StatusInternalServerError, "Can't get file stat")
	}
	if stat.IsDir() {
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	}
	w := c.Response()
	w.Header().Set("Content-Disposition", "attachment; filename="+filepath.Base(stat.Name()))
	http.ServeContent(w, c.Request(), stat.Name(), stat.ModTime(), file)
	return nil
}

func failUpload(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, response{Success: false, Message: msg})
}

func failRun(c echo.Context, res *api.Result, err error, resp response) error {
	goapp.Log.Error().Err(err).Send()
	resp.Success = false
	resp.Stage = api.StageOf(err)
	resp.Error = err.Error()
	resp.Message = fmt.Sprintf("Processing failed at %s stage", resp.Stage)
	if res != nil {
		resp.RunID = res.RunID
		resp.TranscribedText = res.RecognizedText
		resp.AIResponse = res.GeneratedText
		resp.AudioFile = res.AudioFile
	}
	return c.JSON(http.StatusInternalServerError, resp)
}

func cleanFiles(f *multipart.Form) {
	if f != nil {
		_ = f.RemoveAll()
	}
}

func takeFile(form *multipart.Form, paramName string) (multipart.File, *multipart.FileHeader, error) {
	handler := takeFirst(form.File[paramName], nil)
	if handler == nil {
		return nil, nil, http.ErrMissingFile
	}
	file, err := handler.Open()
	return file, handler, err
}

func takeFirst[K interface{}](a []K, d K) K {
	if len(a) > 0 {
		return a[0]
	}
	return d
}

func defaultS(v, d string) string {
	if v != "" {
		return v
	}
	return d
}
