package tracking

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

var exportHeader = []string{"Task Type", "Subject", "Content"}

// ExportCreatedTasks writes the problems and containment tasks filed by the
// bot account as semicolon-separated CSV. A problem with a recorded cause is
// followed by an extra "Ursache" row.
func (c *TeamboardClient) ExportCreatedTasks(ctx context.Context, w io.Writer) error {
	var tasks []task
	err := c.withSession(ctx, func(s *session) error {
		listed, err := c.listTasks(ctx, s, categoryProblem, categoryContainment)
		if err != nil {
			return err
		}
		tasks = tasks[:0]
		for _, t := range listed {
			if creator, _ := t["uuidOfCreator"].(string); creator == s.userID {
				tasks = append(tasks, t)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	cw.Comma = ';'
	if err := cw.Write(exportHeader); err != nil {
		return fmt.Errorf("write export header: %w", err)
	}
	for _, t := range tasks {
		for _, row := range exportRows(t) {
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("write export row: %w", err)
			}
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush export: %w", err)
	}
	return nil
}

func exportRows(t task) [][]string {
	category, _ := t["category"].(string)
	subject, _ := t["subject"].(string)
	body, _ := t["body"].(string)

	taskType := "Problem"
	if strings.Contains(category, "task") {
		taskType = "Maßnahme"
	}
	rows := [][]string{{taskType, subject, body}}

	props, _ := t["taskProperties"].(map[string]any)
	if cause, ok := props["problemDefinition"].(string); ok {
		rows = append(rows, []string{"Ursache", subject, cause})
	}
	return rows
}
