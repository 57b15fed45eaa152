package printer

import (
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/funnyzak/mockflow/internal/storage"
	"github.com/funnyzak/mockflow/internal/workspace"
	"github.com/funnyzak/mockflow/pkg/endpoint"
)

func (p *ConsolePrinter) newTable() table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(p.out)
	tw.SetStyle(table.StyleRounded)
	tw.Style().Format.Header = text.FormatDefault
	tw.Style().Format.Footer = text.FormatDefault
	tw.Style().Title.Format = text.FormatDefault
	return tw
}

// PrintEndpoints renders the workspace endpoints as a table.
func (p *ConsolePrinter) PrintEndpoints(items []workspace.Item, folders []endpoint.Folder) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(items) == 0 {
		fmt.Fprintln(p.out, p.t(keyEmptyEndpoints))
		return nil
	}

	folderNames := make(map[string]string, len(folders))
	for _, f := range folders {
		folderNames[f.ID] = f.Name
	}

	tw := p.newTable()
	tw.AppendHeader(table.Row{
		p.t(keyTableFavorite), p.t(keyTableID), p.t(keyTableName), p.t(keyTableMethod),
		p.t(keyTablePath), p.t(keyTableStatus), p.t(keyTableLatency), p.t(keyTableFolder),
		p.t(keyTableVariants), p.t(keyTableRateLimit),
	})
	for _, item := range items {
		fav := ""
		if item.Favorite {
			fav = "*"
		}
		status := item.StatusCode
		if v, ok := item.ActiveVariant(); ok {
			status = v.StatusCode
		}
		limit := "-"
		if rl := item.RateLimit; rl != nil && rl.Enabled {
			limit = fmt.Sprintf("%d / %dms", rl.Limit, rl.WindowMs)
		}
		tw.AppendRow(table.Row{
			fav, item.ID, item.Name,
			p.methodColor(item.Method).Sprint(item.Method),
			item.Path,
			p.statusColor(status).Sprint(status),
			fmt.Sprintf("%dms", item.Latency),
			folderNames[item.FolderID],
			len(item.Variants),
			limit,
		})
	}
	tw.Render()
	return nil
}

// PrintHistory renders history entries, newest first.
func (p *ConsolePrinter) PrintHistory(entries []*storage.HistoryEntry, total int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(entries) == 0 {
		fmt.Fprintln(p.out, p.t(keyEmptyHistory))
		return nil
	}

	tw := p.newTable()
	tw.AppendHeader(table.Row{
		p.t(keyTableTime), p.t(keyTableSource), p.t(keyTableMethod),
		p.t(keyTableName), p.t(keyTableStatus), p.t(keyTableLatency),
	})
	for _, e := range entries {
		tw.AppendRow(table.Row{
			e.Timestamp.Local().Format("15:04:05"),
			p.t(keySourcePrefix + e.Source),
			p.methodColor(e.Method).Sprint(e.Method),
			e.Endpoint,
			p.statusColor(e.Status).Sprint(e.Status),
			strconv.Itoa(e.Latency) + "ms",
		})
	}
	tw.AppendFooter(table.Row{"", "", "", fmt.Sprintf(p.t(keyTableShown), len(entries), total)})
	tw.Render()
	return nil
}

// PrintAnalytics renders the history summary.
func (p *ConsolePrinter) PrintAnalytics(a storage.Analytics) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	tw := p.newTable()
	tw.SetTitle(p.t(keyAnalyticsTitle))
	tw.AppendRows([]table.Row{
		{p.t(keyAnalyticsTotal), a.Total},
		{p.t(keyAnalyticsSuccess), a.Success},
		{p.t(keyAnalyticsErrors), a.Errors},
		{p.t(keyAnalyticsSuccessRate), fmt.Sprintf("%d%%", a.SuccessRate)},
		{p.t(keyAnalyticsErrorRate), fmt.Sprintf("%d%%", a.ErrorRate)},
		{p.t(keyAnalyticsAvgLatency), fmt.Sprintf("%dms", a.AvgLatency)},
	})
	tw.Render()
	return nil
}
