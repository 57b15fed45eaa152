package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/funnyzak/mockflow/internal/config"
)

const minBoxWidth = 50

func printStartupBanner(cfg *config.Config, a *app) {
	locale := cfg.Output.Locale
	text := func(key string) string {
		return a.translator.Text(locale, "cli.banner."+key)
	}
	onOff := func(enabled bool) string {
		if enabled {
			return text("enabled")
		}
		return text("disabled")
	}

	titleLine := fmt.Sprintf("MockFlow v%s", version)
	subtitleLine := text("subtitle")

	lines := []string{
		fmt.Sprintf(text("listening"), fmt.Sprintf("http://0.0.0.0:%d", cfg.Server.Port)),
		fmt.Sprintf(text("endpoints"), len(a.workspace.List(""))),
	}
	if cfg.Web.Enable {
		lines = append(lines,
			fmt.Sprintf(text("admin"), cfg.Server.BaseURL+cfg.Web.AdminPath),
			fmt.Sprintf(text("auth"), onOff(cfg.Web.Auth.Enable)),
		)
	}
	lines = append(lines, "")

	storageDesc := cfg.Storage.Driver
	if cfg.Storage.Driver == "sqlite" {
		storageDesc += " (" + cfg.Storage.Path + ")"
	}
	lines = append(lines, fmt.Sprintf(text("storage"), storageDesc))

	windows := cfg.RateLimit.Backend
	if windows == "redis" {
		windows += " (" + cfg.RateLimit.Redis.Addr + ")"
	}
	lines = append(lines, fmt.Sprintf(text("ratelimit"), windows))

	if cfg.Live.BaseURL != "" {
		lines = append(lines, fmt.Sprintf(text("live"), cfg.Live.BaseURL))
	} else {
		lines = append(lines, text("live_none"))
	}
	lines = append(lines, "", text("stop"))

	renderBox(os.Stdout, titleLine, subtitleLine, lines)

	a.log.Info("MockFlow starting",
		"version", version,
		"port", cfg.Server.Port,
		"log_level", cfg.Log.Level,
		"storage", cfg.Storage.Driver,
		"ratelimit", cfg.RateLimit.Backend,
		"web_enable", cfg.Web.Enable,
		"web_admin_path", cfg.Web.AdminPath,
		"web_auth", cfg.Web.Auth.Enable,
		"web_export", cfg.Web.Export.Enable,
	)
}

// renderBox draws a centered title block above left-aligned lines. Widths are
// display columns, so CJK text lines up.
func renderBox(w io.Writer, title, subtitle string, lines []string) {
	maxWidth := 0
	for _, line := range append([]string{title, subtitle}, lines...) {
		if width := runewidth.StringWidth(line); width > maxWidth {
			maxWidth = width
		}
	}
	boxWidth := maxWidth + 6
	if boxWidth < minBoxWidth {
		boxWidth = minBoxWidth
	}
	inner := boxWidth - 2

	fmt.Fprintln(w)
	fmt.Fprintf(w, "┌%s┐\n", strings.Repeat("─", inner))
	for _, line := range []string{title, subtitle} {
		padding := inner - runewidth.StringWidth(line)
		fmt.Fprintf(w, "│%s%s%s│\n", strings.Repeat(" ", padding/2), line, strings.Repeat(" ", padding-padding/2))
	}
	fmt.Fprintf(w, "├%s┤\n", strings.Repeat("─", inner))
	for _, line := range lines {
		fmt.Fprintf(w, "│  %s│\n", runewidth.FillRight(line, inner-2))
	}
	fmt.Fprintf(w, "└%s┘\n", strings.Repeat("─", inner))
	fmt.Fprintln(w)
}
