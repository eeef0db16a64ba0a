package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/campuschat/campuschat/internal/account"
	"github.com/campuschat/campuschat/internal/cli"
	"github.com/campuschat/campuschat/internal/clienterr"
	"github.com/campuschat/campuschat/internal/composer"
	"github.com/campuschat/campuschat/internal/config"
	"github.com/campuschat/campuschat/internal/directory"
	"github.com/campuschat/campuschat/internal/mention"
	"github.com/campuschat/campuschat/internal/provider"
	"github.com/campuschat/campuschat/internal/provider/local"
	"github.com/campuschat/campuschat/internal/provider/remote"
	"github.com/campuschat/campuschat/internal/session"
	"github.com/campuschat/campuschat/internal/stats"
	"github.com/campuschat/campuschat/internal/stream"
)

var (
	baseURL   string
	roomName  string
	localMode bool
	email     string
	password  string
	register  bool
	fullName  string
	handle    string
	debugAddr string
)

func main() {
	flag.StringVar(&baseURL, "url", "http://localhost:8000", "chat service base URL")
	flag.StringVar(&roomName, "room", config.DefaultRoomName, "room to join")
	flag.BoolVar(&localMode, "local", false, "run against an in-process provider instead of a remote service")
	flag.StringVar(&email, "email", "", "account email (prompted when empty)")
	flag.StringVar(&password, "password", "", "account password (prompted when empty)")
	flag.BoolVar(&register, "register", false, "create a new account before logging in")
	flag.StringVar(&fullName, "name", "", "display name for registration")
	flag.StringVar(&handle, "handle", "", "handle for registration (defaults to the email local part)")
	flag.StringVar(&debugAddr, "debug-addr", "", "optional address serving runtime stats")
	flag.Parse()

	logger := log.New(os.Stderr, "[campuschat] ", log.LstdFlags)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		creds provider.CredentialProvider
		docs  provider.DocumentStore
		feed  provider.LiveFeed
	)
	if localMode {
		creds = local.NewCredentialStore(logger)
		docs = local.NewDocumentStore()
		feed = local.NewFeed(logger)
	} else {
		cfg, err := config.NewConfig(baseURL, roomName)
		if err != nil {
			logger.Fatal("config:", err)
		}
		client := remote.NewClient(cfg, logger)
		creds, docs, feed = client, client, client
	}

	guard := session.NewGuard(creds, logger)
	mgr := account.NewManager(creds, docs, guard, logger)

	statsUpdater := stats.NewStatsUpdater()
	guard.SetStats(statsUpdater)
	statsUpdater.Run()
	defer statsUpdater.Stop()

	if debugAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.HandleFunc("/debug/stats", statsUpdater.Handler())
			if err := http.ListenAndServe(debugAddr, mux); err != nil {
				logger.Println("debug listener:", err)
			}
		}()
	}

	if localMode {
		seedDemo(ctx, mgr, logger)
	}

	reader := bufio.NewReader(os.Stdin)
	if email == "" {
		email = prompt(reader, "Email: ")
	}
	if password == "" {
		password = prompt(reader, "Password: ")
	}

	if register || localMode {
		if _, err := mgr.Register(ctx, email, password, fullName, handle); err != nil {
			logger.Fatal("register: ", userMessage(err))
		}
	}

	user, err := mgr.Login(ctx, email, password)
	if err != nil {
		logger.Fatal("login: ", userMessage(err))
	}
	logger.Printf("logged in as @%s", user.Handle)

	dir := directory.NewCache(docs, logger)
	if err := dir.Refresh(ctx); err != nil {
		logger.Println("directory refresh:", err)
	} else {
		statsUpdater.Incr(stats.DirectoryRefreshes)
	}

	ctrl, err := stream.NewController(feed, statsUpdater, logger)
	if err != nil {
		logger.Fatal("stream: ", err)
	}
	if err := ctrl.Start(ctx); err != nil {
		logger.Fatal("subscribe: ", err)
	}
	defer ctrl.Stop()

	engine := mention.NewEngine(dir)
	comp := composer.NewComposer(ctrl, guard, engine, user, logger)

	if err := cli.Run(ctx, cli.ChatConfig{
		RoomName:   roomName,
		User:       user,
		Controller: ctrl,
		Composer:   comp,
		Guard:      guard,
	}); err != nil {
		logger.Println("ui:", err)
	}

	if !guard.Active() {
		fmt.Fprintln(os.Stderr, clienterr.NewSessionExpiredError().UserMessage())
		return
	}

	if err := mgr.Logout(ctx); err != nil {
		logger.Println("logout:", err)
	}
	logger.Println("goodbye")
}

// seedDemo populates the in-process provider with a few directory entries so
// mention autocomplete has candidates in local mode.
func seedDemo(ctx context.Context, mgr *account.Manager, logger *log.Logger) {
	demo := []struct{ email, name, handle string }{
		{"alice@campus.test", "Alice Hart", "alice"},
		{"alina@campus.test", "Alina Ortiz", "alina"},
		{"bob@campus.test", "Bob Chen", "bob"},
	}
	for _, d := range demo {
		if _, err := mgr.Register(ctx, d.email, "demo-password", d.name, d.handle); err != nil {
			logger.Println("seed demo user:", err)
		}
	}
}

func prompt(r *bufio.Reader, label string) string {
	fmt.Fprint(os.Stderr, label)
	line, _ := r.ReadString('\n')
	return strings.TrimSpace(line)
}

func userMessage(err error) string {
	var ce *clienterr.ClientError
	if errors.As(err, &ce) {
		return ce.UserMessage()
	}
	return err.Error()
}
