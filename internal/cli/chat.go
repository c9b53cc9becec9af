package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/raphaelgruber/diarist/internal/client"
	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat <user> [message]",
	Short: "Chat with the diary companion",
	Long: `Send messages to the diarist server as the given user.
With a message argument, sends it once and prints the reply. Without one,
starts an interactive session; an empty line or Ctrl-D ends it.

Examples:
  diarist chat alice "I went hiking today and feel great"
  diarist chat alice`,
	Annotations: map[string]string{remoteAnnotation: "true"},
	Args:        cobra.RangeArgs(1, 2),
	RunE:        runChat,
}

var watchCmd = &cobra.Command{
	Use:   "watch <user>",
	Short: "Print diaries as they are written",
	Long: `Stream diary events for the user from the server until interrupted.

Examples:
  diarist watch alice`,
	Annotations: map[string]string{remoteAnnotation: "true"},
	Args:        cobra.ExactArgs(1),
	RunE:        runWatch,
}

func runChat(cmd *cobra.Command, args []string) error {
	c := apiClient()
	userID := args[0]

	if len(args) == 2 {
		return sendChat(cmd.Context(), c, userID, args[1], os.Stdout)
	}
	return chatLoop(cmd.Context(), c, userID, os.Stdin, os.Stdout)
}

// chatLoop reads one message per line until EOF or an empty line.
func chatLoop(ctx context.Context, c *client.Client, userID string, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, defaultTheme.hintStyle().Render("you> "))
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			return nil
		}
		if err := sendChat(ctx, c, userID, line, out); err != nil {
			fmt.Fprintln(out, defaultTheme.errorStyle().Render("Error: "+err.Error()))
		}
	}
}

func sendChat(ctx context.Context, c *client.Client, userID, message string, out io.Writer) error {
	reply, err := c.Chat(ctx, userID, message)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, reply.Reply)
	if verbose && len(reply.Docs) > 0 {
		for _, d := range reply.Docs {
			fmt.Fprintln(out, defaultTheme.hintStyle().Render("  · "+d))
		}
	}
	if reply.Diary != nil {
		fmt.Fprintln(out, defaultTheme.renderOutcome(reply.Diary.Status, reply.Diary.Reason, reply.Diary.DiaryDate, reply.Diary.Emotion))
	}
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	fmt.Println(defaultTheme.hintStyle().Render(fmt.Sprintf("Watching diaries for %s (Ctrl-C to stop)", args[0])))
	err := apiClient().WatchDiaries(ctx, args[0], func(ev client.DiaryEvent) error {
		fmt.Println(defaultTheme.renderOutcome("success", "", ev.DiaryDate, ev.Emotion))
		return nil
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
