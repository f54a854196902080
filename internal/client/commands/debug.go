package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"schroedinger/internal/client/display"
)

func (r *Registry) registerDebugCommands() {
	r.Register(&Command{
		Name:        "health",
		ShortName:   ".",
		Description: "Check server health",
		Usage:       "health",
		Handler:     healthHandler,
	})
	r.Register(&Command{
		Name:        "url",
		ShortName:   "/",
		Description: "Set API base URL",
		Usage:       "url [apiUrl]",
		Handler:     urlHandler,
	})
	r.Register(&Command{
		Name:        "raw",
		ShortName:   ":",
		Description: "Send raw API request",
		Usage:       "raw <method> <path> [json-body]",
		Handler:     rawRequestHandler,
	})
	r.Register(&Command{
		Name:        "clear",
		ShortName:   "-",
		Description: "Clear screen",
		Usage:       "clear",
		Handler:     clearHandler,
	})
}

func healthHandler(ctx context.Context, s *Session, _ []string) error {
	resp, err := s.Client.Health(ctx)
	if err != nil {
		return err
	}
	s.printf("%sServer Health:%s\n", display.Cyan, display.Reset)
	s.printf("  Status:  %s\n", resp.Status)
	s.printf("  Time:    %s\n", time.Unix(resp.Time, 0).Format("2006-01-02 15:04:05"))
	if resp.Storage != "" {
		s.printf("  Storage: %s\n", resp.Storage)
	}
	return nil
}

func urlHandler(_ context.Context, s *Session, args []string) error {
	if len(args) == 0 {
		s.printf("Current API URL: %s\n", s.Client.BaseURL)
		return nil
	}

	url := args[0]
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "http://" + url
	}
	s.Client.SetBaseURL(url)
	s.printf("%sAPI URL set to: %s%s\n", display.Cyan, url, display.Reset)
	return nil
}

func rawRequestHandler(ctx context.Context, s *Session, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: raw <method> <path> [json-body]")
	}
	method := strings.ToUpper(args[0])
	body := ""
	if len(args) > 2 {
		body = strings.Join(args[2:], " ")
	}
	raw, err := s.Client.RawRequest(ctx, method, args[1], body)
	if err != nil {
		return err
	}
	if len(raw) > 0 {
		display.PrettyPrintJSON(s.Out, raw)
	}
	return nil
}

func clearHandler(_ context.Context, s *Session, _ []string) error {
	s.printf("\033[H\033[2J")
	return nil
}
