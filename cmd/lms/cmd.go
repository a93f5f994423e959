package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/nhle/lms-client/internal/apiclient"
	"github.com/nhle/lms-client/internal/app"
	"github.com/nhle/lms-client/internal/auth"
	"github.com/nhle/lms-client/internal/model"
	"github.com/nhle/lms-client/internal/store"
)

var (
	readPasswordFunc = term.ReadPassword // mockable
	runProgramFunc   = runProgram        // mockable

	errHelp        = errors.New("help provided")
	errNotSignedIn = errors.New("not signed in; run `lms login -email EMAIL` first")
)

type commandLine struct {
	svc     *app.Services
	cfgPath string
	out     io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  tui                                   - open the terminal UI (default)")
	fmt.Fprintln(cli.out, "  login -email EMAIL                    - sign in; the password is prompted next")
	fmt.Fprintln(cli.out, "  register -email EMAIL -first NAME -last NAME [-role student|instructor]")
	fmt.Fprintln(cli.out, "                                        - create an account and sign in")
	fmt.Fprintln(cli.out, "  logout                                - end the session and forget the token")
	fmt.Fprintln(cli.out, "  whoami                                - show the signed-in user")
	fmt.Fprintln(cli.out, "  notifications [-unread]               - fetch and list notifications")
	fmt.Fprintln(cli.out, "  read -id ID                           - mark one notification read")
	fmt.Fprintln(cli.out, "  read-all                              - mark every notification read")
	fmt.Fprintln(cli.out, "  history [-limit N]                    - show session events and the last snapshot")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		return runProgramFunc(app.New(cli.svc, cli.cfgPath))
	}

	loginCmd := flag.NewFlagSet("login", flag.ContinueOnError)
	loginEmail := loginCmd.String("email", "", "The account email. The password will be prompted next.")

	registerCmd := flag.NewFlagSet("register", flag.ContinueOnError)
	registerEmail := registerCmd.String("email", "", "The account email.")
	registerFirst := registerCmd.String("first", "", "First name.")
	registerLast := registerCmd.String("last", "", "Last name.")
	registerRole := registerCmd.String("role", string(model.RoleStudent), "student or instructor.")

	listCmd := flag.NewFlagSet("notifications", flag.ContinueOnError)
	listUnread := listCmd.Bool("unread", false, "Only list unread notifications.")

	readCmd := flag.NewFlagSet("read", flag.ContinueOnError)
	readID := readCmd.String("id", "", "The notification id.")

	historyCmd := flag.NewFlagSet("history", flag.ContinueOnError)
	historyLimit := historyCmd.Int("limit", store.DefaultEventLimit, "Maximum number of session events.")

	for _, fs := range []*flag.FlagSet{loginCmd, registerCmd, listCmd, readCmd, historyCmd} {
		fs.SetOutput(cli.out)
	}

	ctx := context.Background()

	switch args[1] {
	case "tui":
		return runProgramFunc(app.New(cli.svc, cli.cfgPath))

	case "login":
		if err := loginCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *loginEmail == "" {
			loginCmd.Usage()
			return errHelp
		}
		if cli.signedIn(ctx) {
			return nil
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			loginCmd.Usage()
			return errHelp
		}
		return cli.login(ctx, apiclient.LoginRequest{Email: *loginEmail, Password: pwd})

	case "register":
		if err := registerCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *registerEmail == "" || *registerFirst == "" || *registerLast == "" {
			registerCmd.Usage()
			return errHelp
		}
		if cli.signedIn(ctx) {
			return nil
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		return cli.register(ctx, apiclient.RegisterRequest{
			FirstName: *registerFirst,
			LastName:  *registerLast,
			Email:     *registerEmail,
			Password:  pwd,
			Role:      model.Role(*registerRole),
		})

	case "logout":
		return cli.logout()

	case "whoami":
		return cli.whoami(ctx)

	case "notifications":
		if err := listCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		return cli.listNotifications(ctx, *listUnread)

	case "read":
		if err := readCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *readID == "" {
			readCmd.Usage()
			return errHelp
		}
		return cli.markRead(ctx, *readID)

	case "read-all":
		return cli.markAllRead(ctx)

	case "history":
		if err := historyCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		return cli.history(ctx, *historyLimit)

	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) promptPassword() (string, error) {
	fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(os.Stdin.Fd()))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}

// pendingSession settles a persisted token before a new sign-in. A token the
// server still accepts is reported as the current session; a rejected one
// leaves the manager unauthenticated so the sign-in can go ahead.
func (cli *commandLine) pendingSession(ctx context.Context) (model.Session, bool) {
	if cli.svc.Auth.State() != auth.StateAuthenticating {
		return cli.svc.Auth.Session()
	}
	sess, err := cli.restore(ctx)
	if err != nil {
		cli.svc.Logger.Info("discarding persisted session: %v", err)
		return model.Session{}, false
	}
	return sess, true
}

// signedIn reports an existing session instead of starting a new sign-in.
func (cli *commandLine) signedIn(ctx context.Context) bool {
	sess, ok := cli.pendingSession(ctx)
	if ok {
		fmt.Fprintf(cli.out, "Already signed in as %s (%s); run `lms logout` first\n", sess.DisplayName, sess.Role)
	}
	return ok
}

func (cli *commandLine) login(ctx context.Context, req apiclient.LoginRequest) error {
	sess, err := cli.svc.Auth.Login(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "Signed in as %s (%s)\n", sess.DisplayName, sess.Role)
	return nil
}

func (cli *commandLine) register(ctx context.Context, req apiclient.RegisterRequest) error {
	sess, err := cli.svc.Auth.Register(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "Account created; signed in as %s (%s)\n", sess.DisplayName, sess.Role)
	return nil
}

func (cli *commandLine) logout() error {
	if cli.svc.Auth.State() == auth.StateUnauthenticated {
		fmt.Fprintln(cli.out, "Not signed in")
		return nil
	}
	cli.svc.Auth.Logout()
	fmt.Fprintln(cli.out, "Signed out")
	return nil
}

// restore re-validates the persisted token with the server.
func (cli *commandLine) restore(ctx context.Context) (model.Session, error) {
	mgr := cli.svc.Auth
	if mgr.State() == auth.StateAuthenticating {
		if err := mgr.RefreshProfile(ctx); err != nil {
			if apiclient.IsKind(err, apiclient.KindSessionExpired) {
				return model.Session{}, errors.New("session expired; sign in again")
			}
			return model.Session{}, err
		}
	}
	sess, ok := mgr.Session()
	if !ok {
		return model.Session{}, errNotSignedIn
	}
	return sess, nil
}

func (cli *commandLine) whoami(ctx context.Context) error {
	sess, err := cli.restore(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cli.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Name:\t%s\n", sess.DisplayName)
	fmt.Fprintf(w, "Email:\t%s\n", sess.User.Email)
	fmt.Fprintf(w, "Role:\t%s\n", sess.Role)
	fmt.Fprintf(w, "User ID:\t%s\n", sess.UserID)
	if !sess.TokenExpiry.IsZero() {
		fmt.Fprintf(w, "Expires:\t%s\n", sess.TokenExpiry.Local().Format(time.RFC1123))
	}
	return w.Flush()
}

func (cli *commandLine) listNotifications(ctx context.Context, unreadOnly bool) error {
	if _, err := cli.restore(ctx); err != nil {
		return err
	}
	p := cli.svc.Poller
	if err := p.Sync(ctx); err != nil {
		return err
	}

	items := p.Items()
	fmt.Fprintf(cli.out, "%d notifications, %d unread (%d messages)\n",
		len(items), p.UnreadCount(), p.UnreadMessageCount())

	w := tabwriter.NewWriter(cli.out, 0, 0, 2, ' ', 0)
	for _, n := range items {
		if unreadOnly && n.IsRead {
			continue
		}
		marker := " "
		if !n.IsRead {
			marker = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			marker, n.ID, n.Kind, n.CreatedAt.Local().Format("Jan 2 15:04"), oneLine(n.Message))
	}
	return w.Flush()
}

func (cli *commandLine) markRead(ctx context.Context, id string) error {
	if _, err := cli.restore(ctx); err != nil {
		return err
	}
	if err := cli.svc.Poller.MarkRead(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "Marked %s read\n", id)
	return nil
}

func (cli *commandLine) markAllRead(ctx context.Context) error {
	if _, err := cli.restore(ctx); err != nil {
		return err
	}
	if err := cli.svc.Poller.MarkAllRead(ctx); err != nil {
		return err
	}
	fmt.Fprintln(cli.out, "Marked all notifications read")
	return nil
}

// history reads only the local store; it works without a session.
func (cli *commandLine) history(ctx context.Context, limit int) error {
	events, err := cli.svc.Store.GetSessionEvents(ctx, limit)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cli.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tEVENT\tUSER\tDETAIL")
	for _, ev := range events {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			ev.CreatedAt.Local().Format("2006-01-02 15:04:05"), ev.Kind, ev.UserID, ev.Detail)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	snap, err := cli.svc.Store.GetNotificationSnapshot(ctx)
	if err != nil {
		return err
	}
	if snap == nil {
		fmt.Fprintln(cli.out, "\nNo notification snapshot yet")
		return nil
	}
	unread := 0
	for _, n := range snap.Items {
		if !n.IsRead {
			unread++
		}
	}
	fmt.Fprintf(cli.out, "\nLast snapshot %s: %d notifications, %d unread\n",
		snap.FetchedAt.Local().Format("2006-01-02 15:04:05"), len(snap.Items), unread)
	return nil
}

func runProgram(m tea.Model) error {
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
