// Command registry-tui is a read-only live monitor for a running
// registryd instance: it polls /debug/registry over HTTP and renders the
// connected-device table with tview as one table and one status line.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

var (
	addr         = flag.String("addr", "http://127.0.0.1:8080", "Base URL of the registryd HTTP side-channel")
	pollInterval = flag.Duration("interval", 2*time.Second, "Poll interval for /debug/registry")
)

type device struct {
	DeviceID       string `json:"deviceId"`
	DeviceName     string `json:"deviceName"`
	DeviceType     string `json:"deviceType"`
	SlotID         int16  `json:"slotId"`
	CurrentClients int16  `json:"currentClients"`
	MaxClients     int16  `json:"maxClients"`
	Host           string `json:"host"`
	Port           int32  `json:"port"`
}

type monitor struct {
	app       *tview.Application
	table     *tview.Table
	status    *tview.TextView
	client    *http.Client
	targetURL string
	stopChan  chan struct{}
}

func newMonitor(baseURL string) *monitor {
	m := &monitor{
		app:       tview.NewApplication(),
		table:     tview.NewTable().SetBorders(true),
		status:    tview.NewTextView().SetDynamicColors(true),
		client:    &http.Client{Timeout: 3 * time.Second},
		targetURL: baseURL + "/debug/registry",
		stopChan:  make(chan struct{}),
	}
	m.setupUI()
	return m
}

func (m *monitor) setupUI() {
	m.table.SetCell(0, 0, tview.NewTableCell("Device ID").SetSelectable(false))
	m.table.SetCell(0, 1, tview.NewTableCell("Name").SetSelectable(false))
	m.table.SetCell(0, 2, tview.NewTableCell("Type").SetSelectable(false))
	m.table.SetCell(0, 3, tview.NewTableCell("Slot").SetSelectable(false))
	m.table.SetCell(0, 4, tview.NewTableCell("Clients").SetSelectable(false))
	m.table.SetCell(0, 5, tview.NewTableCell("Address").SetSelectable(false))
	m.table.SetFixed(1, 0)

	m.status.SetText(fmt.Sprintf("[yellow]polling %s every %s. press q to quit.", m.targetURL, *pollInterval))

	flex := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(m.table, 0, 1, true).
		AddItem(m.status, 1, 0, false)

	m.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Rune() == 'q' || event.Key() == tcell.KeyEscape {
			m.app.Stop()
			return nil
		}
		return event
	})
	m.app.SetRoot(flex, true)
}

func (m *monitor) poll() {
	ticker := time.NewTicker(*pollInterval)
	defer ticker.Stop()

	m.refresh()
	for {
		select {
		case <-ticker.C:
			m.refresh()
		case <-m.stopChan:
			return
		}
	}
}

func (m *monitor) refresh() {
	resp, err := m.client.Get(m.targetURL)
	if err != nil {
		m.app.QueueUpdateDraw(func() {
			m.status.SetText(fmt.Sprintf("[red]poll error: %v", err))
		})
		return
	}
	defer resp.Body.Close()

	var devices []device
	if err := json.NewDecoder(resp.Body).Decode(&devices); err != nil {
		m.app.QueueUpdateDraw(func() {
			m.status.SetText(fmt.Sprintf("[red]decode error: %v", err))
		})
		return
	}

	m.app.QueueUpdateDraw(func() {
		for row := m.table.GetRowCount() - 1; row >= 1; row-- {
			m.table.RemoveRow(row)
		}
		for i, d := range devices {
			row := i + 1
			m.table.SetCell(row, 0, tview.NewTableCell(d.DeviceID))
			m.table.SetCell(row, 1, tview.NewTableCell(d.DeviceName))
			m.table.SetCell(row, 2, tview.NewTableCell(d.DeviceType))
			m.table.SetCell(row, 3, tview.NewTableCell(fmt.Sprintf("%d", d.SlotID)))
			m.table.SetCell(row, 4, tview.NewTableCell(fmt.Sprintf("%d/%d", d.CurrentClients, d.MaxClients)))
			m.table.SetCell(row, 5, tview.NewTableCell(fmt.Sprintf("%s:%d", d.Host, d.Port)))
		}
		m.status.SetText(fmt.Sprintf("[yellow]%d device(s) connected. press q to quit.", len(devices)))
	})
}

func (m *monitor) run() error {
	go m.poll()
	defer close(m.stopChan)
	return m.app.Run()
}

func main() {
	flag.Parse()

	m := newMonitor(*addr)
	if err := m.run(); err != nil {
		fmt.Fprintf(os.Stderr, "registry-tui: %v\n", err)
		os.Exit(1)
	}
}
