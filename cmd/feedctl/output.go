package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	jsoniter "github.com/json-iterator/go"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	headerStyle = color.New(color.Bold)
	labelStyle  = color.New(color.Bold)
	boostStyle  = color.New(color.FgYellow, color.Bold)
	warnStyle   = color.New(color.FgYellow)
	infoStyle   = color.New(color.FgCyan)
)

func printWarning(w io.Writer, msg string, args ...interface{}) {
	warnStyle.Fprintf(w, "Warning: "+msg+"\n", args...)
}

func printInfo(w io.Writer, msg string, args ...interface{}) {
	infoStyle.Fprintf(w, msg+"\n", args...)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := jsonAPI.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printRecord prints key/value pairs with bold keys, in the given order
func printRecord(w io.Writer, keys []string, values map[string]string) {
	width := 0
	for _, k := range keys {
		if len(k) > width {
			width = len(k)
		}
	}
	for _, k := range keys {
		labelStyle.Fprintf(w, "%-*s ", width+1, k+":")
		fmt.Fprintln(w, values[k])
	}
}

func printTable(w io.Writer, headers []string, rows [][]string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	for i, h := range headers {
		headerStyle.Fprint(tw, h)
		if i < len(headers)-1 {
			fmt.Fprint(tw, "\t")
		}
	}
	fmt.Fprintln(tw)

	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}
