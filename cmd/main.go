package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/labstack/gommon/log"
	"golang.org/x/time/rate"

	"fable/pkg/assets"
	"fable/pkg/extract"
	"fable/pkg/generate"
	"fable/pkg/inference"
	"fable/pkg/paint"
	"fable/pkg/server"
	"fable/pkg/store"
)

func main() {
	ctx, done := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	dataDir := os.Getenv("FABLE_DATA_DIR")
	if dataDir == "" {
		dataDir = "data"
	}

	db, err := store.Open(dataDir)
	if err != nil {
		log.Fatalf("opening database: %v", err)
	}
	if err := store.Migrate(db); err != nil {
		log.Fatalf("migrating database: %v", err)
	}

	inf, painter := buildProviders(ctx)

	if perMin := os.Getenv("FABLE_IMAGES_PER_MINUTE"); perMin != "" {
		n, err := strconv.Atoi(perMin)
		if err != nil || n < 1 {
			log.Fatalf("invalid FABLE_IMAGES_PER_MINUTE: %q", perMin)
		}
		painter = paint.Limit(painter, rate.NewLimiter(rate.Limit(float64(n)/60.0), 1))
	}

	art := assets.NewStore(filepath.Join(dataDir, "pages"))
	gen := generate.New(extract.New(inf), painter, art)

	srv := server.NewServer(ctx, store.New(db), art, gen)
	srv.Echo.Logger.SetLevel(log.INFO)

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}

	finishedShutDown := make(chan struct{})
	go func() {
		<-ctx.Done()
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Error(err)
		}
		if err := db.Close(); err != nil {
			log.Error(err)
		}
		done()
		close(finishedShutDown)
	}()

	if err := srv.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error(err)
	}
	<-finishedShutDown
}

// buildProviders picks text and image providers from the environment:
// Gemini when its key is present (it accepts reference images), otherwise
// OpenAI, otherwise an OpenAI-compatible local server.
func buildProviders(ctx context.Context) (inference.Inferencer, paint.Painter) {
	if geminiKey := os.Getenv("GEMINI_API_KEY"); geminiKey != "" {
		inf, err := inference.NewGeminiInferencer(ctx, geminiKey, os.Getenv("GEMINI_MODEL"))
		if err != nil {
			log.Fatalf("gemini client: %v", err)
		}
		painter, err := paint.NewGeminiPainter(ctx, geminiKey, os.Getenv("GEMINI_IMAGE_MODEL"))
		if err != nil {
			log.Fatalf("gemini image client: %v", err)
		}
		return inf, painter
	}

	apiKey := os.Getenv("OPENAI_API_KEY")
	model := os.Getenv("OPENAI_MODEL")
	if model == "" {
		model = "gpt-4o-mini"
	}
	openAI := inference.NewOpenAIInferencer(apiKey, model)
	if apiKey == "" {
		log.Warn("no provider keys set; using OpenAI-compatible server at localhost:1234")
		openAI.ChangeBaseURL("http://localhost:1234/v1")
		openAI.SetModel("")
	}
	return openAI, paint.NewOpenAIPainter(apiKey, os.Getenv("OPENAI_IMAGE_MODEL"))
}
