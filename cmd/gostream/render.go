package main

import (
	"encoding/json"
	"io"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/samber/lo"

	"github.com/alvarorichard/Gostream/pkg/gostream"
	"github.com/alvarorichard/Gostream/pkg/gostream/types"
)

func newTable(header table.Row) table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(header)
	return tw
}

func renderVariants(variants []types.Variant) string {
	tw := newTable(table.Row{"#", "Server", "Quality", "Type", "Track", "Subtitles", "URL"})
	for i, v := range variants {
		tw.AppendRow(table.Row{
			i + 1,
			v.SourceServer,
			v.QualityTag,
			v.Kind.String(),
			v.TrackKind.String(),
			subtitleSummary(v.Subtitles),
			v.StreamURL,
		})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 7, WidthMax: 80},
	})
	return tw.Render()
}

func subtitleSummary(tracks []types.Subtitle) string {
	if len(tracks) == 0 {
		return "-"
	}
	labels := lo.Map(tracks, func(t types.Subtitle, _ int) string {
		if t.HearingImpaired {
			return t.Language + " (HI)"
		}
		return t.Language
	})
	return strings.Join(labels, ", ")
}

func renderFailures(failures []gostream.Failure) string {
	tw := newTable(table.Row{"Server", "Stage", "Error"})
	for _, f := range failures {
		tw.AppendRow(table.Row{f.Server, string(f.Stage), f.Err.Error()})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{{Number: 3, WidthMax: 80}})
	return tw.Render()
}

func renderSources(sources []types.Source) string {
	tw := newTable(table.Row{"Family", "Kind", "Fallback"})
	for _, s := range sources {
		fallback := ""
		if s.Fallback {
			fallback = "yes"
		}
		tw.AppendRow(table.Row{s.Name, s.Kind, fallback})
	}
	tw.AppendFooter(table.Row{"", "total", strconv.Itoa(len(sources))})
	return tw.Render()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
