package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/dukerupert/shoplist/internal/backup"
	"github.com/dukerupert/shoplist/internal/model"
)

const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

func checkFormat(format string) error {
	switch format {
	case formatText, formatJSON, formatYAML:
		return nil
	}
	return fmt.Errorf("unknown output format %q (want text, json or yaml)", format)
}

// render writes v as JSON or YAML, or calls text for the human format.
func render(w io.Writer, format string, v any, text func(w io.Writer) error) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return text(w)
	}
}

func checkmark(b bool) string {
	if b {
		return "x"
	}
	return " "
}

func renderCategories(w io.Writer, format string, categories []model.Category) error {
	return render(w, format, categories, func(w io.Writer) error {
		if len(categories) == 0 {
			_, err := fmt.Fprintln(w, "No categories.")
			return err
		}
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tSHARE\tNAME")
		for _, c := range categories {
			fmt.Fprintf(tw, "%d\t[%s]\t%s\n", c.ID, checkmark(c.Selected), c.Name)
		}
		return tw.Flush()
	})
}

func renderCategory(w io.Writer, format string, c model.Category) error {
	return render(w, format, c, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "%d [%s] %s\n", c.ID, checkmark(c.Selected), c.Name)
		return err
	})
}

func renderItems(w io.Writer, format string, items []model.Item) error {
	return render(w, format, items, func(w io.Writer) error {
		if len(items) == 0 {
			_, err := fmt.Fprintln(w, "No items.")
			return err
		}
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tDONE\tQTY\tNAME")
		for _, item := range items {
			fmt.Fprintf(tw, "%d\t[%s]\t%d\t%s\n", item.ID, checkmark(item.Checked), item.Quantity, item.Name)
		}
		return tw.Flush()
	})
}

func renderItem(w io.Writer, format string, item model.Item) error {
	return render(w, format, item, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "%d [%s] %s (Quantity: %d)\n", item.ID, checkmark(item.Checked), item.Name, item.Quantity)
		return err
	})
}

func renderBackups(w io.Writer, format string, backups []backup.Info) error {
	return render(w, format, backups, func(w io.Writer) error {
		if len(backups) == 0 {
			_, err := fmt.Fprintln(w, "No backups.")
			return err
		}
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "CREATED\tBYTES\tPATH")
		for _, b := range backups {
			fmt.Fprintf(tw, "%s\t%d\t%s\n", b.CreatedAt.Format("2006-01-02 15:04:05"), b.SizeBytes, b.Path)
		}
		return tw.Flush()
	})
}
