package script

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/tordrt/dbsnap/internal/schema"
)

// FileWriter writes the scripts of a schema into a directory as
// <schema>_ddl.sql and <schema>_dml.sql
type FileWriter struct {
	OutputDir string
	DDLOnly   bool // skip the DML script

	logger *slog.Logger
}

// NewFileWriter creates a new file writer
func NewFileWriter(outputDir string, ddlOnly bool, logger *slog.Logger) *FileWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileWriter{
		OutputDir: outputDir,
		DDLOnly:   ddlOnly,
		logger:    logger,
	}
}

// DDLPath returns the path of the DDL script
func (w *FileWriter) DDLPath(s *schema.Schema) string {
	return filepath.Join(w.OutputDir, s.Name+"_ddl.sql")
}

// DMLPath returns the path of the DML script
func (w *FileWriter) DMLPath(s *schema.Schema) string {
	return filepath.Join(w.OutputDir, s.Name+"_dml.sql")
}

// Write writes the scripts and reports whether all of them were written.
// Failures are logged.
func (w *FileWriter) Write(s *schema.Schema) bool {
	// Create output directory if it doesn't exist
	if err := os.MkdirAll(w.OutputDir, 0755); err != nil {
		w.logger.Error("failed to create output directory", "dir", w.OutputDir, "error", err)
		return false
	}

	ok := w.writeFile(w.DDLPath(s), func(f io.Writer) error {
		return NewDDLGenerator(f).Generate(s)
	})
	if !w.DDLOnly {
		ok = w.writeFile(w.DMLPath(s), func(f io.Writer) error {
			return NewDMLGenerator(f).Generate(s)
		}) && ok
	}
	return ok
}

func (w *FileWriter) writeFile(path string, render func(io.Writer) error) bool {
	if err := writeScript(path, render); err != nil {
		w.logger.Error("failed to write script", "path", path, "error", err)
		return false
	}
	w.logger.Info("script written", "path", path)
	return true
}

func writeScript(path string, render func(io.Writer) error) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := render(file); err != nil {
		_ = file.Close()
		return fmt.Errorf("failed to generate %s: %w", filepath.Base(path), err)
	}
	return file.Close()
}

// WriteAll writes the DDL script, and the DML script unless ddlOnly, to w
func WriteAll(w io.Writer, s *schema.Schema, ddlOnly bool) error {
	if err := NewDDLGenerator(w).Generate(s); err != nil {
		return err
	}
	if ddlOnly {
		return nil
	}
	if _, err := io.WriteString(w, "\n"); err != nil {
		return err
	}
	return NewDMLGenerator(w).Generate(s)
}
