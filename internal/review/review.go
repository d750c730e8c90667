// Package review renders a read-only summary of an application for the applicant to check
// before submitting.
package review

import (
	"strings"

	"permitflow/internal/domain"
	"permitflow/internal/form"
	"permitflow/internal/formdef"
)

// Row is one answer on the review sheet.
type Row struct {
	Step  string
	Key   string
	Label string
	Value string
	Note  string
}

// DocumentRow summarizes one attachment slot.
type DocumentRow struct {
	Label       string
	File        string
	ReferenceID string
	IDStatus    string
	TextCheck   string
	Mandatory   bool
}

// Review is the full summary of one application.
type Review struct {
	Title     string
	Rows      []Row
	Documents []DocumentRow
}

// Build assembles the review from the form definition and the session's current state.
func Build(def *formdef.Definition, snap form.Snapshot, docs map[string]domain.DocumentState, ids map[string]domain.IDVerificationState) *Review {
	r := &Review{Title: def.Title}
	for i := range def.Steps {
		step := &def.Steps[i]
		for _, f := range step.Fields {
			r.Rows = append(r.Rows, fieldRow(step.Title, f, snap))
		}
		for _, a := range step.Attachments {
			r.Documents = append(r.Documents, documentRow(a, snap, docs[a.Key], ids[a.Key]))
		}
	}
	return r
}

func fieldRow(step string, f formdef.Field, snap form.Snapshot) Row {
	row := Row{Step: step, Key: f.Key, Label: f.Label}
	switch f.Kind {
	case domain.FieldKindFlag:
		row.Value = formatBool(snap.Flags[f.Key])
	case domain.FieldKindSignature:
		_, hasFile := snap.Files[f.Key]
		if strings.TrimSpace(snap.Values[f.Key]) != "" || hasFile {
			row.Value = "Signed"
		}
	default:
		row.Value = strings.TrimSpace(snap.Values[f.Key])
	}
	if row.Value == "" && !f.Optional {
		row.Note = "Required"
	}
	return row
}

func documentRow(a domain.AttachmentRequirement, snap form.Snapshot, doc domain.DocumentState, id domain.IDVerificationState) DocumentRow {
	row := DocumentRow{Label: a.Label, Mandatory: a.Mandatory}
	if info, ok := snap.Files[a.Key]; ok {
		row.File = info.Name
	}
	if a.IDField != "" {
		row.ReferenceID = strings.TrimSpace(snap.Values[a.IDField])
	}
	switch {
	case id.Verifying:
		row.IDStatus = "Verifying"
	case id.Verified && id.ID == row.ReferenceID:
		row.IDStatus = "Verified"
	case id.Message != "":
		row.IDStatus = id.Message
	}
	switch {
	case doc.Verifying:
		row.TextCheck = "Checking"
	case doc.Error != "":
		row.TextCheck = doc.Error
	case doc.Verified:
		row.TextCheck = doc.Message
	}
	return row
}

func formatBool(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}
