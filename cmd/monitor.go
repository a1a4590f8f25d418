package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"
	"github.com/gulon/chat-delivery-service/internal/domain/model"
	"golang.org/x/sync/errgroup"
)

const maxSparkPoints = 120

type snapshot struct {
	stats model.HubStats
	ready bool
	err   error
}

// probeInstance reads hub statistics and readiness from a running instance.
func probeInstance(ctx context.Context, client *http.Client, base string) snapshot {
	var snap snapshot

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/debug/hub", nil)
		if err != nil {
			return err
		}
		res, err := client.Do(req)
		if err != nil {
			return err
		}
		defer res.Body.Close()
		if res.StatusCode != http.StatusOK {
			return fmt.Errorf("debug/hub: %s", res.Status)
		}
		return json.NewDecoder(res.Body).Decode(&snap.stats)
	})
	g.Go(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/readyz", nil)
		if err != nil {
			return err
		}
		res, err := client.Do(req)
		if err != nil {
			return err
		}
		_ = res.Body.Close()
		snap.ready = res.StatusCode == http.StatusOK
		return nil
	})
	snap.err = g.Wait()
	return snap
}

type dashboard struct {
	header   *widgets.Paragraph
	channels *widgets.Table
	rate     *widgets.Sparkline
	rateBox  *widgets.SparklineGroup
	grid     *ui.Grid

	lastDelivered uint64
	primed        bool
}

func newDashboard(addr string) *dashboard {
	d := &dashboard{
		header:   widgets.NewParagraph(),
		channels: widgets.NewTable(),
		rate:     widgets.NewSparkline(),
	}
	d.header.Title = " " + addr + " "
	d.channels.Title = " Channels "
	d.channels.RowSeparator = false
	d.channels.TextStyle = ui.NewStyle(ui.ColorWhite)
	d.rate.LineColor = ui.ColorGreen
	d.rate.Title = "delivered/tick"
	d.rateBox = widgets.NewSparklineGroup(d.rate)
	d.rateBox.Title = " Throughput "

	d.grid = ui.NewGrid()
	d.grid.Set(
		ui.NewRow(0.25, ui.NewCol(1.0, d.header)),
		ui.NewRow(0.25, ui.NewCol(1.0, d.rateBox)),
		ui.NewRow(0.5, ui.NewCol(1.0, d.channels)),
	)
	w, h := ui.TerminalDimensions()
	d.grid.SetRect(0, 0, w, h)
	return d
}

func (d *dashboard) update(s snapshot) {
	if s.err != nil {
		d.header.BorderStyle = ui.NewStyle(ui.ColorRed)
		d.header.Text = "unreachable: " + s.err.Error() + "\n\npress q to quit"
		return
	}

	state := "[READY](fg:green)"
	d.header.BorderStyle = ui.NewStyle(ui.ColorGreen)
	if !s.ready {
		state = "[NOT READY](fg:red)"
		d.header.BorderStyle = ui.NewStyle(ui.ColorYellow)
	}
	st := s.stats
	d.header.Text = strings.Join([]string{
		fmt.Sprintf("consumer %s   uptime %s", state, st.Uptime.Truncate(time.Second)),
		fmt.Sprintf("connections %d   channels %d (group %d, user %d)",
			st.TotalConnections, st.TotalChannels, st.GroupChannels, st.UserChannels),
		fmt.Sprintf("delivered %d   dropped %d", st.Delivered, st.Dropped),
		"press q to quit",
	}, "\n")

	if d.primed {
		d.rate.Data = append(d.rate.Data, float64(st.Delivered-min(d.lastDelivered, st.Delivered)))
		if len(d.rate.Data) > maxSparkPoints {
			d.rate.Data = d.rate.Data[len(d.rate.Data)-maxSparkPoints:]
		}
	}
	d.lastDelivered = st.Delivered
	d.primed = true

	rows := [][]string{{"channel", "subscribers", "backlog"}}
	for _, c := range st.Channels {
		rows = append(rows, []string{c.Key, fmt.Sprint(c.Subscribers), fmt.Sprint(c.Backlog)})
	}
	d.channels.Rows = rows
}

// runMonitor renders the dashboard until q or Ctrl-C.
func runMonitor(ctx context.Context, addr string, interval time.Duration) error {
	base := strings.TrimRight(addr, "/")
	client := &http.Client{Timeout: interval}

	if err := ui.Init(); err != nil {
		return fmt.Errorf("monitor: init terminal: %w", err)
	}
	defer ui.Close()

	d := newDashboard(base)
	d.update(probeInstance(ctx, client, base))
	ui.Render(d.grid)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	events := ui.PollEvents()

	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-events:
			switch e.ID {
			case "q", "<C-c>":
				return nil
			case "<Resize>":
				payload := e.Payload.(ui.Resize)
				d.grid.SetRect(0, 0, payload.Width, payload.Height)
				ui.Clear()
				ui.Render(d.grid)
			}
		case <-ticker.C:
			d.update(probeInstance(ctx, client, base))
			ui.Render(d.grid)
		}
	}
}
