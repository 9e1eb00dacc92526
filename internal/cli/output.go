package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
)

// Printer пишет результат команды: данные в stdout, сообщения в stderr.
// В JSON-режиме табличные результаты заменяются их JSON-представлением.
type Printer struct {
	json bool
	out  io.Writer
	msg  io.Writer
}

// NewPrinter создаёт Printer поверх stdout/stderr.
func NewPrinter(jsonMode bool) *Printer {
	return &Printer{json: jsonMode, out: os.Stdout, msg: os.Stderr}
}

// Table — табличное представление результата команды.
type Table struct {
	Header []string
	Rows   [][]string
}

// Render выводит результат: таблицу в текстовом режиме, v — в JSON-режиме.
func (p *Printer) Render(t Table, v any) error {
	if p.json {
		return p.JSON(v)
	}
	tw := tabwriter.NewWriter(p.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(t.Header, "\t"))
	for _, row := range t.Rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

// JSON выводит значение с отступами независимо от режима.
func (p *Printer) JSON(v any) error {
	enc := json.NewEncoder(p.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Successf сообщает об успехе в stderr, не смешиваясь с данными.
func (p *Printer) Successf(format string, args ...any) {
	fmt.Fprintf(p.msg, format+"\n", args...)
}
