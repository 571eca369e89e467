package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/studyarena/pkarena/internal/api"
	"github.com/studyarena/pkarena/internal/app/client"
	"github.com/studyarena/pkarena/internal/domains/dtos"
	"github.com/studyarena/pkarena/internal/store"
	"github.com/studyarena/pkarena/internal/ws"
	"github.com/studyarena/pkarena/pkg/logging"
	"go.uber.org/zap"
)

// App is the interactive terminal front-end: a line-based REPL over the
// arena and battle orchestrators.
type App struct {
	cfg    client.Config
	api    *api.Client
	ws     *ws.Client
	store  *store.Store
	arena  *client.Arena
	view   *terminalView
	reader *bufio.Reader

	mu     sync.Mutex
	battle *client.Battle
}

func NewApp() (*App, error) {
	cfg, err := client.LoadConfig()
	if err != nil {
		return nil, err
	}

	session := api.NewSessionStore(cfg.SessionFile)
	apiClient, err := api.NewClient(api.Config{BaseUrl: cfg.ApiBaseUrl}, session)
	if err != nil {
		return nil, fmt.Errorf("failed to build api client: %w", err)
	}

	wsClient := ws.NewClient(ws.Config{
		Url: cfg.WsUrl,
		Credentials: func() (string, string) {
			access, _ := session.Tokens()
			return session.UserId(), access
		},
		HeartbeatInterval: cfg.HeartbeatInterval,
		ReconnectDelay:    cfg.ReconnectDelay,
		MaxReconnects:     cfg.MaxReconnects,
		QueueLimit:        cfg.QueueLimit,
	})

	reader := bufio.NewReader(os.Stdin)
	view := newTerminalView(reader)
	st := store.New()

	app := &App{
		cfg:    cfg,
		api:    apiClient,
		ws:     wsClient,
		store:  st,
		arena:  client.NewArena(apiClient, wsClient, st, view, cfg),
		view:   view,
		reader: reader,
	}

	apiClient.OnAuthExpired(func() {
		view.Toast("Session expired, please log in again")
	})
	app.arena.OnNavigate(app.enterBattle)
	app.arena.OnSearchTick(func(elapsed time.Duration) {
		fmt.Printf("[matching] searching for %s...\n", elapsed)
	})
	app.arena.OnSearchResults(func(results []dtos.UserSearchResult) {
		for _, result := range results {
			flags := ""
			if result.IsFriend {
				flags = " (friend)"
			} else if result.RequestPending {
				flags = " (request pending)"
			}
			fmt.Printf("  %s  %s  ELO %.0f%s\n",
				result.User.Id, result.User.Nickname, result.User.Elo, flags)
		}
	})
	app.arena.OnInvite(func(invite dtos.BattleInvite) {
		fmt.Printf("Invite %s from %s (%s). Use: acceptinv %s / rejectinv %s\n",
			invite.InviteId, invite.FromUser.Nickname, invite.Mode,
			invite.InviteId, invite.InviteId)
	})
	return app, nil
}

// Run reads commands until EOF or quit.
func (a *App) Run() error {
	ctx := context.Background()
	fmt.Println("pkarena - type 'help' for commands")
	if a.api.Session().Active() {
		fmt.Printf("Logged in as %s\n", a.api.Session().User().Nickname)
		if err := a.arena.Connect(ctx); err != nil {
			logging.Warn("notification channel unavailable", zap.Error(err))
		}
	}

	for {
		fmt.Print("> ")
		line, err := a.reader.ReadString('\n')
		if err != nil {
			return nil
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "quit" || fields[0] == "exit" {
			a.arena.Close()
			a.ws.Disconnect()
			return nil
		}
		if err := a.dispatch(ctx, fields[0], fields[1:]); err != nil {
			fmt.Printf("error: %v\n", err)
		}
	}
}

func (a *App) dispatch(ctx context.Context, command string, args []string) error {
	switch command {
	case "help":
		printHelp()
		return nil
	case "login":
		if len(args) < 2 {
			return fmt.Errorf("usage: login <username> <password>")
		}
		session, err := a.api.Login(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("Welcome, %s (ELO %.0f, %s)\n",
			session.User.Nickname, session.User.Elo, session.User.Tier)
		return a.arena.Connect(ctx)
	case "logout":
		a.arena.Close()
		a.ws.Disconnect()
		return a.api.Logout()
	case "quickmatch":
		mode := "standard"
		if len(args) > 0 {
			mode = args[0]
		}
		return a.arena.StartQuickMatch(ctx, mode)
	case "cancel":
		return a.arena.CancelMatching(ctx)
	case "friends":
		if err := a.arena.LoadFriends(ctx); err != nil {
			return err
		}
		state := a.store.Get()
		for _, friend := range state.Friends {
			status := "offline"
			if friend.Online {
				status = "online"
			}
			fmt.Printf("  %s  %s  ELO %.0f  %s\n",
				friend.Id, friend.Nickname, friend.Elo, status)
		}
		for _, request := range state.Requests {
			fmt.Printf("  request %s from %s: %s\n",
				request.Id, request.FromUserId, request.Message)
		}
		return nil
	case "add":
		if len(args) < 1 {
			return fmt.Errorf("usage: add <userId> [message]")
		}
		return a.api.SendFriendRequest(ctx, args[0], strings.Join(args[1:], " "))
	case "acceptreq":
		if len(args) < 1 {
			return fmt.Errorf("usage: acceptreq <requestId>")
		}
		return a.api.AcceptFriendRequest(ctx, args[0])
	case "rejectreq":
		if len(args) < 1 {
			return fmt.Errorf("usage: rejectreq <requestId>")
		}
		return a.api.RejectFriendRequest(ctx, args[0])
	case "unfriend":
		if len(args) < 1 {
			return fmt.Errorf("usage: unfriend <friendId>")
		}
		return a.api.RemoveFriend(ctx, args[0])
	case "search":
		a.arena.Search(strings.Join(args, " "))
		return nil
	case "invite":
		if len(args) < 1 {
			return fmt.Errorf("usage: invite <friendId> [mode]")
		}
		mode := "standard"
		if len(args) > 1 {
			mode = args[1]
		}
		return a.api.InviteFriend(ctx, args[0], mode)
	case "acceptinv":
		if len(args) < 1 {
			return fmt.Errorf("usage: acceptinv <inviteId>")
		}
		return a.arena.AcceptInvite(ctx, args[0])
	case "rejectinv":
		if len(args) < 1 {
			return fmt.Errorf("usage: rejectinv <inviteId>")
		}
		return a.arena.RejectInvite(ctx, args[0])
	case "rankings":
		tier := ""
		if len(args) > 0 {
			tier = args[0]
		}
		if err := a.arena.LoadRankings(ctx, tier, 20); err != nil {
			return err
		}
		for _, entry := range a.store.Get().Rankings {
			fmt.Printf("  #%d  %s  ELO %.0f  %s  %dW/%dL\n",
				entry.Rank, entry.Nickname, entry.Elo, entry.Tier,
				entry.Wins, entry.Losses)
		}
		return nil
	case "stats":
		if err := a.arena.LoadStats(ctx); err != nil {
			return err
		}
		stats := a.store.Get().Stats
		fmt.Printf("ELO %.0f (%s)  %dW/%dL  win rate %.0f%%  streak %d\n",
			stats.Elo, stats.Tier, stats.Wins, stats.Losses,
			stats.WinRate*100, stats.Streak)
		return nil
	case "profile":
		user, err := a.api.Profile(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("%s (%s)  ELO %.0f  %s\n",
			user.Nickname, user.Username, user.Elo, user.Tier)
		return nil
	case "nick":
		if len(args) < 1 {
			return fmt.Errorf("usage: nick <nickname>")
		}
		user, err := a.api.UpdateProfile(ctx, dtos.UpdateProfileRequest{
			Nickname: strings.Join(args, " "),
		})
		if err != nil {
			return err
		}
		fmt.Printf("Nickname updated to %s\n", user.Nickname)
		return nil
	case "courses":
		resp, err := a.api.ListCourses(ctx, 0, 0)
		if err != nil {
			return err
		}
		for _, course := range resp.Courses {
			fmt.Printf("  %s  %s - %s\n", course.Id, course.Title, course.Description)
		}
		return nil
	case "course":
		if len(args) < 1 {
			return fmt.Errorf("usage: course <courseId>")
		}
		course, err := a.api.GetCourse(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s\n%s\n", course.Title, course.Description)
		for _, chapter := range course.Chapters {
			fmt.Printf("  %d. %s (%s)\n", chapter.Order, chapter.Title, chapter.Id)
		}
		return nil
	case "chapter":
		if len(args) < 1 {
			return fmt.Errorf("usage: chapter <chapterId>")
		}
		chapter, err := a.api.GetChapter(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s\n%s\n", chapter.Title, chapter.Content)
		if note := a.api.Session().Note(chapter.Id); note != "" {
			fmt.Printf("note: %s\n", note)
		}
		return nil
	case "note":
		if len(args) < 2 {
			return fmt.Errorf("usage: note <chapterId> <text>")
		}
		return a.api.Session().SetNote(args[0], strings.Join(args[1:], " "))
	case "battle":
		if len(args) < 1 {
			return fmt.Errorf("usage: battle <battleId>")
		}
		a.enterBattle(args[0])
		return nil
	case "select":
		if len(args) < 1 {
			return fmt.Errorf("usage: select <optionId>")
		}
		battle := a.currentBattle()
		if battle == nil {
			return fmt.Errorf("no active battle")
		}
		battle.Select(strings.ToLower(args[0]))
		return nil
	case "submit":
		battle := a.currentBattle()
		if battle == nil {
			return fmt.Errorf("no active battle")
		}
		return battle.Submit(ctx)
	case "forfeit":
		battle := a.currentBattle()
		if battle == nil {
			return fmt.Errorf("no active battle")
		}
		return battle.Forfeit()
	case "chat":
		battle := a.currentBattle()
		if battle == nil {
			return fmt.Errorf("no active battle")
		}
		battle.Chat(strings.Join(args, " "))
		return nil
	default:
		return fmt.Errorf("unknown command %q, try 'help'", command)
	}
}

// enterBattle builds a fresh orchestrator around a realtime transport
// and brings the battle up in the background so the prompt stays live.
func (a *App) enterBattle(battleId string) {
	transport := client.NewRealtimeTransport(a.api, a.ws)
	battle := client.NewBattle(a.api, a.store, transport, a.view, a.view, a.cfg)

	a.mu.Lock()
	a.battle = battle
	a.mu.Unlock()

	go func() {
		if err := battle.Start(context.Background(), battleId); err != nil {
			fmt.Printf("failed to start battle: %v\n", err)
			a.mu.Lock()
			if a.battle == battle {
				a.battle = nil
			}
			a.mu.Unlock()
		}
	}()
}

func (a *App) currentBattle() *client.Battle {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.battle
}

func printHelp() {
	fmt.Println(`commands:
  login <username> <password>   log in and open the notification channel
  logout                        clear the session
  quickmatch [mode]             join the matchmaking queue
  cancel                        leave the matchmaking queue
  friends / add / acceptreq / rejectreq / unfriend
  search <query>                look up users
  invite <friendId> [mode]      challenge a friend
  acceptinv / rejectinv <inviteId>
  rankings [tier] / stats / profile / nick <nickname>
  courses / course <id> / chapter <id> / note <chapterId> <text>
  battle <battleId>             join a battle directly
  select <a|b|c|d> / submit / forfeit / chat <text>
  quit`)
}
