package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"anonrelay/bot"
	"anonrelay/config"
	"anonrelay/control"
	"anonrelay/logger"
	"anonrelay/metrics"
	"anonrelay/relay"
	"anonrelay/server"
	"anonrelay/store"
	"anonrelay/telegram"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the relay bot",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().Bool("prompt-key", false, "ask for DATA_KEY on the terminal when it is not set")
}

// stopper cancels the serve context once and remembers why.
type stopper struct {
	once   sync.Once
	cancel context.CancelFunc
	reason string
	log    *zap.Logger
}

func (s *stopper) stop(reason string) {
	s.once.Do(func() {
		s.reason = reason
		s.log.Info("shutting down", zap.String("reason", reason))
		s.cancel()
	})
}

// controlHandler answers control socket commands for the running bot.
type controlHandler struct {
	engine  *relay.Engine
	gateway *server.Server
	stop    func(string)
}

func (h controlHandler) Stats() string {
	s := h.engine.Stats()
	out := fmt.Sprintf("users=%d,drafts=%d,entries=%d,complaints=%d,banned=%d,admins=%d,enabled=%t",
		s.Users, s.Drafts, s.Entries, s.Complaints, s.Banned, s.Admins, s.Enabled)
	if h.gateway != nil {
		out += "," + h.gateway.GetStats()
	}
	return out
}

func (h controlHandler) Shutdown(reason string) { h.stop(reason) }

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logger.Init(cfg.LogLevel, cfg.LogDev)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	if ask, _ := cmd.Flags().GetBool("prompt-key"); ask && cfg.DataKey == "" {
		if cfg.DataKey, err = promptKey(); err != nil {
			return err
		}
	}
	if !cfg.EncryptionEnabled() {
		log.Warn("DATA_KEY is empty, state is stored unencrypted")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	st := &stopper{cancel: cancel, log: log}

	backend, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	cipher, err := openCipher(cfg.DataKey)
	if err != nil {
		return err
	}
	states := store.New(backend, cipher, log)
	defer states.Close()

	cred, err := credential(cfg)
	if err != nil {
		return err
	}

	audit, err := logger.NewAuditLog(cfg.AuditLog)
	if err != nil {
		return err
	}
	defer audit.Close()

	var (
		tr      bot.Transport
		src     bot.Source
		gateway *server.Server
	)
	switch cfg.Transport {
	case "gateway":
		gateway = server.New(&server.ServerConfig{
			Port:         cfg.GatewayPort,
			ReadTimeout:  cfg.GatewayReadTimeout,
			WriteTimeout: cfg.GatewayWriteTimeout,
		}, log)
		if err := gateway.Listen(); err != nil {
			return fmt.Errorf("gateway: %w", err)
		}
		tr, src = gateway, gateway
	default:
		api, err := tgbotapi.NewBotAPI(cfg.BotToken)
		if err != nil {
			return fmt.Errorf("telegram: %w", err)
		}
		log.Info("bot authorized", zap.String("bot", api.Self.UserName))
		tr, src = telegram.NewTransport(api, cfg.SendRate), telegram.NewSource(api, log)
	}

	m := metrics.New()
	engine := relay.New(states.Load(ctx), tr, states, relay.Options{
		Footer:        cfg.Footer,
		RateLimit:     cfg.RateLimitWindow,
		Concurrency:   cfg.SendConcurrency,
		DisplayOffset: cfg.DisplayTZOffset,
		Credential:    cred,
		Logger:        log,
		Audit:         audit,
		Observer:      m,
	})
	registerGauges(m, engine)

	if cfg.MetricsAddr != "" {
		srv := serveMetrics(cfg.MetricsAddr, m, log)
		defer srv.Shutdown(context.Background())
	}

	if sock, err := control.Listen(cfg.ControlSocket, controlHandler{engine: engine, gateway: gateway, stop: st.stop}, log); err != nil {
		log.Warn("control socket disabled", zap.Error(err))
	} else {
		go sock.Serve()
		defer sock.Close()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case sig := <-sigChan:
			st.stop("signal " + sig.String())
		case <-ctx.Done():
		}
	}()

	if term.IsTerminal(int(os.Stdin.Fd())) {
		go watchConsole(os.Stdin, st.stop)
	}

	go engine.RunAutosave(ctx, cfg.AutosaveInterval)

	b := bot.New(engine, tr, bot.Options{NoticeTTL: cfg.NoticeTTL, Logger: log, Stop: st.stop})
	log.Info("relay started", zap.String("transport", cfg.Transport), zap.String("store", backend.Name()))
	runErr := b.Run(ctx, src)

	if gateway != nil {
		gateway.Shutdown(st.reason)
	}
	saveCtx, saveCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer saveCancel()
	if err := engine.Save(saveCtx); err != nil {
		log.Error("final save failed", zap.Error(err))
	}
	log.Info("relay stopped")
	return runErr
}

func credential(cfg *config.Config) (*relay.Credential, error) {
	if cfg.AdminPasswordHash != "" {
		return relay.CredentialFromHash(cfg.AdminPasswordHash)
	}
	return relay.NewCredential(cfg.AdminPassword, bcrypt.DefaultCost)
}

func registerGauges(m *metrics.Metrics, engine *relay.Engine) {
	m.Gauge("relay_users", "Known users.", func() float64 { return float64(engine.Stats().Users) })
	m.Gauge("relay_chat_entries", "Entries in the chat ledger.", func() float64 { return float64(engine.Stats().Entries) })
	m.Gauge("relay_open_complaints", "Complaints awaiting moderation.", func() float64 { return float64(engine.Stats().Complaints) })
}

func serveMetrics(addr string, m *metrics.Metrics, log *zap.Logger) *http.Server {
	srv := &http.Server{Addr: addr, Handler: m.Router(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", zap.Error(err))
		}
	}()
	log.Info("metrics listening", zap.String("addr", addr))
	return srv
}

// watchConsole stops the bot when the operator types exit, quit, stop or shutdown.
func watchConsole(r io.Reader, stop func(string)) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		switch strings.ToLower(strings.TrimSpace(sc.Text())) {
		case "exit", "quit", "stop", "shutdown":
			stop("console")
			return
		}
	}
}
