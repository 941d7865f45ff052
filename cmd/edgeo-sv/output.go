package main

import (
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/edgeo/drivers/sv/sv"
)

// OutputFormat represents output format types
type OutputFormat string

const (
	FormatTable OutputFormat = "table"
	FormatJSON  OutputFormat = "json"
	FormatCSV   OutputFormat = "csv"
	FormatYAML  OutputFormat = "yaml"
	FormatRaw   OutputFormat = "raw"
)

// ParseOutputFormat validates an output format name
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(s); f {
	case FormatTable, FormatJSON, FormatCSV, FormatYAML, FormatRaw:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (table, json, csv, yaml, raw)", s)
	}
}

// ASDUView is the printable form of an ASDU
type ASDUView struct {
	SvID     string  `json:"svID" yaml:"svID"`
	DatSet   string  `json:"datSet,omitempty" yaml:"datSet,omitempty"`
	SmpCnt   uint16  `json:"smpCnt" yaml:"smpCnt"`
	ConfRev  uint32  `json:"confRev" yaml:"confRev"`
	RefrTm   *uint64 `json:"refrTm,omitempty" yaml:"refrTm,omitempty"`
	SmpSynch string  `json:"smpSynch" yaml:"smpSynch"`
	SmpRate  *uint16 `json:"smpRate,omitempty" yaml:"smpRate,omitempty"`
	SmpMod   string  `json:"smpMod,omitempty" yaml:"smpMod,omitempty"`
	SeqData  string  `json:"seqData" yaml:"seqData"`
	Samples  []int32 `json:"samples,omitempty" yaml:"samples,omitempty,flow"`
}

// PayloadView is the printable form of a payload and where it came from
type PayloadView struct {
	Frame     int        `json:"frame,omitempty" yaml:"frame,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
	Source    string     `json:"source,omitempty" yaml:"source,omitempty"`
	VLAN      *uint16    `json:"vlan,omitempty" yaml:"vlan,omitempty"`
	APPID     string     `json:"appid" yaml:"appid"`
	Length    uint16     `json:"length" yaml:"length"`
	NoASDU    uint8      `json:"noASDU" yaml:"noASDU"`
	ASDUs     []ASDUView `json:"asdus" yaml:"asdus"`
}

func newASDUView(a *sv.ASDU) ASDUView {
	v := ASDUView{
		SvID:     a.SvID(),
		DatSet:   a.DatSet(),
		SmpCnt:   a.SmpCnt,
		ConfRev:  a.ConfRev,
		SmpSynch: a.SmpSynch.String(),
		SeqData:  hex.EncodeToString(a.SeqData()),
	}
	if a.Has(sv.FieldRefrTm) {
		refrTm := a.RefrTm
		v.RefrTm = &refrTm
	}
	if a.Has(sv.FieldSmpRate) {
		smpRate := a.SmpRate
		v.SmpRate = &smpRate
	}
	if a.Has(sv.FieldSmpMod) {
		v.SmpMod = a.SmpMod.String()
	}
	for _, s := range a.Samples() {
		v.Samples = append(v.Samples, s.Value)
	}
	return v
}

// NewPayloadView converts a decoded payload
func NewPayloadView(p *sv.Payload) PayloadView {
	v := PayloadView{
		APPID:  fmt.Sprintf("0x%04X", p.APPID),
		Length: p.Length,
		NoASDU: p.NoASDU,
		ASDUs:  make([]ASDUView, 0, p.Count()),
	}
	asdus := p.ASDUs()
	for i := range asdus {
		v.ASDUs = append(v.ASDUs, newASDUView(&asdus[i]))
	}
	return v
}

// WithFrame annotates the view with Ethernet details
func (v PayloadView) WithFrame(f *sv.Frame) PayloadView {
	if f == nil {
		return v
	}
	v.Source = f.Source.String()
	if f.Tagged {
		vlan := f.VLANID
		v.VLAN = &vlan
	}
	return v
}

// Formatter handles output formatting
type Formatter struct {
	format OutputFormat
	writer io.Writer

	csv           *csv.Writer
	headerWritten bool
}

// NewFormatter creates a new formatter
func NewFormatter(format OutputFormat) *Formatter {
	return &Formatter{
		format: format,
		writer: os.Stdout,
	}
}

// SetWriter sets the output writer
func (f *Formatter) SetWriter(w io.Writer) {
	f.writer = w
	f.csv = nil
	f.headerWritten = false
}

// Printf formats and prints output
func (f *Formatter) Printf(format string, args ...interface{}) {
	fmt.Fprintf(f.writer, format, args...)
}

// Println prints a line
func (f *Formatter) Println(args ...interface{}) {
	fmt.Fprintln(f.writer, args...)
}

// PrintPayload prints one payload in the configured format
func (f *Formatter) PrintPayload(v PayloadView) error {
	switch f.format {
	case FormatJSON:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal json: %w", err)
		}
		f.Println(string(data))
	case FormatYAML:
		data, err := yaml.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal yaml: %w", err)
		}
		f.Println("---")
		fmt.Fprint(f.writer, string(data))
	case FormatCSV:
		return f.printCSV(v)
	case FormatRaw:
		for _, a := range v.ASDUs {
			f.Printf("%s %s %d %s\n", v.APPID, a.SvID, a.SmpCnt, a.SeqData)
		}
	default:
		f.printPayloadTable(v)
	}
	return nil
}

var csvHeader = []string{"frame", "source", "appid", "noASDU", "svID", "datSet", "smpCnt", "confRev", "smpSynch", "seqData"}

func (f *Formatter) printCSV(v PayloadView) error {
	if f.csv == nil {
		f.csv = csv.NewWriter(f.writer)
	}
	if !f.headerWritten {
		if err := f.csv.Write(csvHeader); err != nil {
			return err
		}
		f.headerWritten = true
	}
	for _, a := range v.ASDUs {
		row := []string{
			strconv.Itoa(v.Frame),
			v.Source,
			v.APPID,
			strconv.Itoa(int(v.NoASDU)),
			a.SvID,
			a.DatSet,
			strconv.Itoa(int(a.SmpCnt)),
			strconv.FormatUint(uint64(a.ConfRev), 10),
			a.SmpSynch,
			a.SeqData,
		}
		if err := f.csv.Write(row); err != nil {
			return err
		}
	}
	f.csv.Flush()
	return f.csv.Error()
}

func (f *Formatter) printPayloadTable(v PayloadView) {
	pairs := map[string]interface{}{
		"APPID":  v.APPID,
		"Length": v.Length,
		"noASDU": v.NoASDU,
		"ASDUs":  len(v.ASDUs),
	}
	order := []string{"Frame", "Time", "Source", "VLAN", "APPID", "Length", "noASDU", "ASDUs"}
	if v.Frame > 0 {
		pairs["Frame"] = v.Frame
	}
	if v.Timestamp != nil {
		pairs["Time"] = v.Timestamp.Format(time.RFC3339Nano)
	}
	if v.Source != "" {
		pairs["Source"] = v.Source
	}
	if v.VLAN != nil {
		pairs["VLAN"] = *v.VLAN
	}
	f.PrintKeyValue(pairs, order)

	if len(v.ASDUs) > 0 {
		f.Println()
		rows := make([][]string, 0, len(v.ASDUs))
		for _, a := range v.ASDUs {
			rows = append(rows, []string{
				a.SvID,
				strconv.Itoa(int(a.SmpCnt)),
				strconv.FormatUint(uint64(a.ConfRev), 10),
				a.SmpSynch,
				a.SeqData,
			})
		}
		f.PrintTable([]string{"svID", "smpCnt", "confRev", "smpSynch", "seqData"}, rows)
	}
	f.Println()
}

// PrintTable prints data in table format
func (f *Formatter) PrintTable(headers []string, rows [][]string) {
	// Calculate column widths
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	for i, h := range headers {
		fmt.Fprintf(f.writer, "%-*s ", widths[i], h)
	}
	fmt.Fprintln(f.writer)

	for i := range headers {
		for j := 0; j < widths[i]; j++ {
			fmt.Fprint(f.writer, "-")
		}
		fmt.Fprint(f.writer, " ")
	}
	fmt.Fprintln(f.writer)

	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) {
				fmt.Fprintf(f.writer, "%-*s ", widths[i], cell)
			}
		}
		fmt.Fprintln(f.writer)
	}
}

// PrintKeyValue prints key-value pairs
func (f *Formatter) PrintKeyValue(pairs map[string]interface{}, order []string) {
	maxKeyLen := 0
	for _, key := range order {
		if _, ok := pairs[key]; ok && len(key) > maxKeyLen {
			maxKeyLen = len(key)
		}
	}

	for _, key := range order {
		if val, ok := pairs[key]; ok {
			fmt.Fprintf(f.writer, "%-*s: %v\n", maxKeyLen, key, val)
		}
	}
}

// PrintMetrics prints a metrics snapshot
func (f *Formatter) PrintMetrics(snap sv.MetricsSnapshot) {
	pairs := map[string]interface{}{
		"Uptime":             snap.Uptime.Round(time.Millisecond),
		"Payloads decoded":   snap.PayloadsDecoded,
		"Payloads failed":    snap.PayloadsFailed,
		"ASDUs decoded":      snap.ASDUsDecoded,
		"Bytes decoded":      snap.BytesDecoded,
		"Frames skipped":     snap.FramesSkipped,
		"Datagrams received": snap.DatagramsReceived,
		"Avg decode latency": snap.LatencyStats.Avg,
		"Max decode latency": snap.LatencyStats.Max,
	}
	order := []string{
		"Uptime",
		"Payloads decoded",
		"Payloads failed",
		"ASDUs decoded",
		"Bytes decoded",
		"Frames skipped",
		"Datagrams received",
		"Avg decode latency",
		"Max decode latency",
	}
	reasons := make([]sv.Reason, 0, len(snap.Failures))
	for r, n := range snap.Failures {
		if n > 0 {
			reasons = append(reasons, r)
		}
	}
	sort.Slice(reasons, func(i, j int) bool { return reasons[i] < reasons[j] })
	for _, r := range reasons {
		key := "Rejected " + r.String()
		pairs[key] = snap.Failures[r]
		order = append(order, key)
	}
	f.PrintKeyValue(pairs, order)
}
