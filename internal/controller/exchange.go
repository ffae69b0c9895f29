package controller

import (
	"context"
	"strings"

	"contactdesk/internal/codec"
)

// Export fetches the collection in format and redacts it into an artifact.
// With an empty canonical list nothing is requested.
func (c *Controller) Export(ctx context.Context, format codec.Format) (*codec.Artifact, error) {
	if c.store.Len() == 0 {
		c.notify.Notify(Notice{Kind: NoticeInfo, Message: "No contacts to export."})
		return nil, ErrNothingToExport
	}

	var (
		art *codec.Artifact
		err error
	)
	switch format {
	case codec.FormatJSON:
		var raw []byte
		if raw, err = c.api.ExportJSON(ctx); err != nil {
			return nil, c.fail("JSON export", NoticeError, err)
		}
		if art, err = codec.RedactJSON(raw); err != nil {
			return nil, c.fail("JSON export", NoticeError, err)
		}
	case codec.FormatXML:
		var raw []byte
		if raw, err = c.api.ExportXML(ctx); err != nil {
			return nil, c.fail("XML export", NoticeError, err)
		}
		art = codec.RedactXML(raw)
	default:
		return nil, c.fail("Export", NoticeError, codec.ErrNoFormat)
	}

	c.notify.Notify(Notice{Kind: NoticeSuccess, Message: strings.ToUpper(format.String()) + " export completed."})
	return art, nil
}

// ExportJSON exports contacts.json.
func (c *Controller) ExportJSON(ctx context.Context) (*codec.Artifact, error) {
	return c.Export(ctx, codec.FormatJSON)
}

// ExportXML exports contacts.xml.
func (c *Controller) ExportXML(ctx context.Context) (*codec.Artifact, error) {
	return c.Export(ctx, codec.FormatXML)
}

// ImportJSON validates payload, confirms, and replaces the caller's contacts.
// Invalid payloads are refused before any request.
func (c *Controller) ImportJSON(ctx context.Context, payload []byte) error {
	if err := c.resolveRole(ctx, "Import"); err != nil {
		return err
	}
	if c.sess.Role().IsAdmin() {
		return ErrAdminImport
	}
	records, err := codec.ProjectImportJSON(payload)
	if err != nil {
		return c.fail("JSON import", NoticeError, err)
	}
	if !c.confirm.Confirm("JSON import will replace all your current contacts. Continue?") {
		return ErrCancelled
	}
	msg, err := c.api.ImportJSON(ctx, records)
	if err != nil {
		return c.fail("JSON import", NoticeError, err)
	}
	c.reload(ctx)
	c.notify.Notify(Notice{Kind: NoticeSuccess, Message: orDefault(msg, "Imported JSON")})
	return nil
}

// ImportXML confirms and sends payload unchanged; the service validates it.
func (c *Controller) ImportXML(ctx context.Context, payload []byte) error {
	if err := c.resolveRole(ctx, "Import"); err != nil {
		return err
	}
	if c.sess.Role().IsAdmin() {
		return ErrAdminImport
	}
	if !c.confirm.Confirm("XML import will replace all your current contacts. Continue?") {
		return ErrCancelled
	}
	msg, err := c.api.ImportXML(ctx, payload)
	if err != nil {
		return c.fail("XML import", NoticeError, err)
	}
	c.reload(ctx)
	c.notify.Notify(Notice{Kind: NoticeSuccess, Message: orDefault(msg, "Imported XML")})
	return nil
}

// ImportDetected dispatches on the upload's detected format.
func (c *Controller) ImportDetected(ctx context.Context, up codec.Upload) error {
	switch up.Format {
	case codec.FormatJSON:
		return c.ImportJSON(ctx, up.Data)
	case codec.FormatXML:
		return c.ImportXML(ctx, up.Data)
	}
	return c.fail("Import", NoticeError, codec.ErrNoFormat)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
