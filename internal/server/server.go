package server

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	"docrag/internal/models"
	"docrag/internal/rag"
)

var supportedExtensions = map[string]bool{
	".pdf":  true,
	".docx": true,
	".pptx": true,
	".xlsx": true,
	".ods":  true,
	".txt":  true,
	".md":   true,
}

type chatResponse struct {
	Answer   string              `json:"answer"`
	Sources  []models.Source     `json:"sources"`
	Ingested []models.FileResult `json:"ingested,omitempty"`
}

// Server is the HTTP boundary around the pipeline.
type Server struct {
	pipeline *rag.Pipeline
}

func New(pipeline *rag.Pipeline) *echo.Echo {
	s := &Server{pipeline: pipeline}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	e.POST("/chat", s.Chat)
	e.GET("/health", s.Health)
	return e
}

// Chat ingests any attached files, then answers the question against the
// index. Ingestion failures are reported per file and never fail the request
// on their own.
func (s *Server) Chat(c echo.Context) error {
	ctx := c.Request().Context()
	reqID := uuid.NewString()
	logger := log.With().Str("request_id", reqID).Logger()

	question := c.FormValue("question")
	if strings.TrimSpace(question) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "question is required")
	}

	k := s.pipeline.DefaultK()
	if raw := c.FormValue("k"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "k must be a positive integer")
		}
		k = parsed
	}

	files, err := readFiles(c)
	if err != nil {
		return err
	}

	var report models.IngestReport
	if len(files) > 0 {
		report = s.pipeline.Ingest(ctx, files)
		logger.Info().Int("files", len(files)).Int("failed", report.Failed()).Msg("Ingested uploads")
	}

	answer, err := s.pipeline.Answer(ctx, question, k)
	if err != nil {
		logger.Error().Err(err).Msg("Query failed")
		he := httpError(err)
		if len(report.Files) > 0 {
			// the uploads may have landed even though answering failed
			return c.JSON(he.Code, map[string]any{
				"error":    he.Message,
				"ingested": report.Files,
			})
		}
		return he
	}

	return c.JSON(http.StatusOK, chatResponse{
		Answer:   answer.Content,
		Sources:  answer.Sources,
		Ingested: report.Files,
	})
}

func (s *Server) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func readFiles(c echo.Context) ([]rag.File, error) {
	form, err := c.MultipartForm()
	if err != nil {
		// no multipart body means no uploads
		return nil, nil
	}

	var files []rag.File
	for _, fh := range form.File["files"] {
		if !supportedExtensions[strings.ToLower(filepath.Ext(fh.Filename))] {
			return nil, echo.NewHTTPError(http.StatusBadRequest, "unsupported file type: "+fh.Filename)
		}
		f, err := fh.Open()
		if err != nil {
			return nil, echo.NewHTTPError(http.StatusBadRequest, "failed to read file "+fh.Filename)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, echo.NewHTTPError(http.StatusBadRequest, "failed to read file "+fh.Filename)
		}
		files = append(files, rag.File{Name: fh.Filename, Data: data})
	}
	return files, nil
}

func httpError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, models.ErrInvalidQuery):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrTimeout):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, models.ErrLLMUnavailable), errors.Is(err, models.ErrEmbeddingUnavailable):
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
}
