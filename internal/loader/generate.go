package loader

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/attribution-cli/internal/model"
)

var (
	sampleEventTypes = []string{
		"page_view", "add_to_cart", "checkout", "purchase",
		"signup", "login", "subscription", "download",
		"video_play", "form_submit", "click", "scroll",
	}
	sampleSources   = []string{"google", "facebook", "twitter", "linkedin", "instagram", "email", "direct", "organic", "referral", "youtube"}
	sampleMediums   = []string{"cpc", "cpm", "social", "email", "organic", "referral", "display", "video", "affiliate"}
	sampleCampaigns = []string{"summer_sale", "black_friday", "new_product", "brand_awareness", "retargeting", "newsletter", "webinar", "ebook_download"}
	sampleDevices   = []string{"desktop", "mobile", "tablet", "tv", "wearable"}
	sampleBrowsers  = []string{"Chrome", "Safari", "Firefox", "Edge", "Opera", "Samsung Internet", "Mobile Safari"}
	sampleCountries = []string{"US", "GB", "CA", "AU", "DE", "FR", "JP", "BR", "IN", "MX", "ES", "IT", "NL", "SE", "KR"}
	sampleCurrency  = []string{"USD", "EUR", "GBP", "JPY", "CAD", "AUD"}
)

// Generator produces synthetic events for exercising the loader and the
// attribution tables. A fixed seed yields the same events.
type Generator struct {
	orgID    string
	rng      *rand.Rand
	users    []string
	sessions []string
}

// NewGenerator creates a Generator for orgID.
func NewGenerator(orgID string, seed uint64) *Generator {
	g := &Generator{orgID: orgID, rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
	for i := 0; i < 100; i++ {
		g.users = append(g.users, "user_"+g.hex(8))
	}
	return g
}

// hex returns n pseudo-random hex digits from the seeded source.
func (g *Generator) hex(n int) string {
	var b strings.Builder
	for b.Len() < n {
		fmt.Fprintf(&b, "%016x", g.rng.Uint64())
	}
	return b.String()[:n]
}

// id returns a seeded UUID string.
func (g *Generator) id() string {
	var raw [16]byte
	for i := range raw {
		raw[i] = byte(g.rng.UintN(256))
	}
	u, _ := uuid.FromBytes(raw[:])
	return u.String()
}

func (g *Generator) pick(pool []string) string {
	return pool[g.rng.IntN(len(pool))]
}

func (g *Generator) value(eventType string) float64 {
	var lo, hi float64
	switch eventType {
	case "purchase":
		lo, hi = 10, 500
	case "subscription", "checkout":
		lo, hi = 20, 200
	case "add_to_cart":
		lo, hi = 5, 100
	default:
		return 0
	}
	return math.Round((lo+g.rng.Float64()*(hi-lo))*100) / 100
}

func (g *Generator) session() string {
	if len(g.sessions) > 0 && g.rng.Float64() < 0.7 {
		return g.pick(g.sessions)
	}
	s := "session_" + g.hex(12)
	g.sessions = append(g.sessions, s)
	if len(g.sessions) > 50 {
		g.sessions = g.sessions[1:]
	}
	return s
}

// Event generates one event within the hour starting at base.
func (g *Generator) Event(base time.Time) model.ConversionEvent {
	eventType := g.pick(sampleEventTypes)
	ev := model.ConversionEvent{
		ID:             g.id(),
		OrganizationID: g.orgID,
		EventID:        "evt_" + g.hex(12),
		Timestamp:      base.Add(time.Duration(g.rng.IntN(3600)) * time.Second).UTC(),
		EventType:      eventType,
		EventValue:     g.value(eventType),
		Currency:       "USD",
		UserID:         g.pick(g.users),
		SessionID:      g.session(),
	}
	if ev.EventValue > 0 {
		ev.Currency = g.pick(sampleCurrency)
	}

	if g.rng.Float64() < 0.8 {
		ev.UTMSource = g.pick(sampleSources)
		ev.UTMMedium = g.pick(sampleMediums)
		if g.rng.Float64() < 0.6 {
			ev.UTMCampaign = g.pick(sampleCampaigns)
		}
	}
	if g.rng.Float64() < 0.9 {
		ev.DeviceType = g.pick(sampleDevices)
		ev.Browser = g.pick(sampleBrowsers)
	}
	if g.rng.Float64() < 0.95 {
		ev.Country = g.pick(sampleCountries)
	}
	if g.rng.Float64() < 0.3 {
		hops := make([]string, 1+g.rng.IntN(4))
		for i, j := range g.rng.Perm(len(sampleSources))[:len(hops)] {
			hops[i] = sampleSources[j]
		}
		ev.AttributionPath = strings.Join(hops, " > ")
	}
	return ev
}

// Events spreads n events across [start, end) hour by hour.
func (g *Generator) Events(n int, start, end time.Time) []model.ConversionEvent {
	if n <= 0 || !end.After(start) {
		return nil
	}
	hours := int(end.Sub(start).Hours())
	perHour := max(1, n/max(hours, 1))

	out := make([]model.ConversionEvent, 0, n)
	for cur := start; len(out) < n && cur.Before(end); cur = cur.Add(time.Hour) {
		batch := max(1, perHour+g.rng.IntN(16)-5)
		for i := 0; i < batch && len(out) < n; i++ {
			out = append(out, g.Event(cur))
		}
	}
	return out
}

// WriteEvents writes events to path in format f. FormatAuto uses the
// extension.
func WriteEvents(path string, f Format, events []model.ConversionEvent) error {
	f = DetectFormat(path, f)
	if f == FormatXLSX {
		return writeXLSX(path, events)
	}

	file, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "loader: create %s", path)
	}
	w := bufio.NewWriter(file)

	switch f {
	case FormatJSON:
		err = writeJSON(w, events, false)
	case FormatJSONL:
		err = writeJSON(w, events, true)
	default:
		err = writeCSV(w, events)
	}
	if err == nil {
		err = w.Flush()
	}
	if cerr := file.Close(); err == nil && cerr != nil {
		err = cerr
	}
	if err != nil {
		return eris.Wrapf(err, "loader: write %s", path)
	}
	return nil
}

// fileColumns is the on-disk header; it uses "timestamp" where the table
// uses "occurred_at".
var fileColumns = []string{
	"id", "organization_id", "event_id", "timestamp", "event_type",
	"event_value", "currency", "user_id", "session_id",
	"utm_source", "utm_medium", "utm_campaign",
	"device_type", "browser", "country", "attribution_path",
}

func eventStrings(ev model.ConversionEvent) []string {
	return []string{
		ev.ID, ev.OrganizationID, ev.EventID, ev.Timestamp.Format(time.RFC3339), ev.EventType,
		strconv.FormatFloat(ev.EventValue, 'f', 2, 64), ev.Currency, ev.UserID, ev.SessionID,
		ev.UTMSource, ev.UTMMedium, ev.UTMCampaign,
		ev.DeviceType, ev.Browser, ev.Country, ev.AttributionPath,
	}
}

func writeCSV(w io.Writer, events []model.ConversionEvent) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(fileColumns); err != nil {
		return err
	}
	for _, ev := range events {
		if err := cw.Write(eventStrings(ev)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeJSON(w io.Writer, events []model.ConversionEvent, lines bool) error {
	if lines {
		enc := json.NewEncoder(w)
		for _, ev := range events {
			if err := enc.Encode(ev); err != nil {
				return err
			}
		}
		return nil
	}
	if events == nil {
		events = []model.ConversionEvent{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(events)
}

func writeXLSX(path string, events []model.ConversionEvent) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("events")
	if err != nil {
		return eris.Wrap(err, "loader: add xlsx sheet")
	}
	for _, row := range append([][]string{fileColumns}, rowsOf(events)...) {
		r := sheet.AddRow()
		for _, v := range row {
			r.AddCell().SetString(v)
		}
	}
	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "loader: save xlsx %s", path)
	}
	return nil
}

func rowsOf(events []model.ConversionEvent) [][]string {
	out := make([][]string, len(events))
	for i, ev := range events {
		out[i] = eventStrings(ev)
	}
	return out
}
