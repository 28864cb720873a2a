package main

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"
	"github.com/ariqa-labs/bxml.go/binxml"
	"github.com/ariqa-labs/bxml.go/manifest"
)

// CLI defines the bxmldump command-line interface.
//
// We deliberately keep it minimal:
//   - input: a binary AndroidManifest.xml, an APK, or a directory of either
//   - output: override for where the decoded XML goes (file mode only)
//   - summary: print package facts instead of the XML document
//
// In directory mode every regular file in the directory (one level, no
// recursion) is decoded in turn and the --output flag is rejected.
type CLI struct {
	File    string `short:"f" type:"path" help:"Binary AndroidManifest.xml or APK to decode"`
	Dir     string `short:"d" type:"path" help:"Directory of manifests/APKs to decode (one level)"`
	Output  string `short:"o" type:"path" help:"Output file (file input only; defaults to stdout)"`
	Summary bool   `help:"Print a manifest summary instead of the XML document"`
	Strict  bool   `help:"Treat recoverable structural anomalies as errors"`
	NoDecl  bool   `help:"Omit the leading XML declaration"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("bxmldump"),
		kong.Description("Decode Android binary XML manifests into textual XML."),
	)

	if err := run(&cli); err != nil {
		ctx.FatalIfErrorf(err)
	}
}

func run(cli *CLI) error {
	if cli.Dir != "" {
		if cli.Output != "" {
			return errors.New("--output is not allowed when input is a directory")
		}
		return runForDir(cli, cli.Dir)
	}
	if cli.File != "" {
		return dumpOne(cli, cli.File, cli.Output)
	}
	return errors.New("no --file or --dir specified")
}

// runForDir decodes every regular file directly inside dir, writing
// each document to stdout behind a "==> name <==" header line.
func runForDir(cli *CLI, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read dir %q: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// A file that cannot be statted is an error, not a skip.
			return fmt.Errorf("stat %q: %w", entry.Name(), err)
		}
		if !info.Mode().IsRegular() {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		fmt.Printf("==> %s <==\n", path)
		if err := dumpOne(cli, path, ""); err != nil {
			return err
		}
	}

	return nil
}

// dumpOne decodes a single input and writes the XML document (or the
// summary) to outPath, or to stdout when outPath is empty. Decoder
// warnings go to stderr either way.
func dumpOne(cli *CLI, path, outPath string) error {
	buf, err := loadManifest(path)
	if err != nil {
		return err
	}

	d := binxml.NewDecoder(buf)
	d.SetStrict(cli.Strict)
	d.SetEmitDeclaration(!cli.NoDecl)

	text, err := d.Decode()
	for _, w := range d.Warnings() {
		fmt.Fprintf(os.Stderr, "%s: %s\n", path, w)
	}
	if err != nil {
		return fmt.Errorf("decode %q: %w", path, err)
	}

	if cli.Summary {
		m, err := manifest.Parse(text)
		if err != nil {
			return fmt.Errorf("summarize %q: %w", path, err)
		}
		return writeOut(outPath, summaryText(m))
	}

	if len(text) > 0 && text[len(text)-1] != '\n' {
		text = append(text, '\n')
	}
	return writeOut(outPath, text)
}

func writeOut(outPath string, data []byte) error {
	if outPath == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return fmt.Errorf("write %q: %w", outPath, err)
	}
	return nil
}

// loadManifest reads path and, when it is a ZIP container (an APK),
// extracts its AndroidManifest.xml entry. Plain files come back as-is.
func loadManifest(path string) ([]byte, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", path, err)
	}
	if !bytes.HasPrefix(buf, []byte("PK\x03\x04")) {
		return buf, nil
	}

	zr, err := zip.NewReader(bytes.NewReader(buf), int64(len(buf)))
	if err != nil {
		return nil, fmt.Errorf("open apk %q: %w", path, err)
	}
	for _, f := range zr.File {
		if f.Name != "AndroidManifest.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %q in %q: %w", f.Name, path, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("extract %q from %q: %w", f.Name, path, err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("apk %q has no AndroidManifest.xml entry", path)
}

// summaryText renders the package facts the way a quick triage wants
// them: identity first, then components with their intent filters,
// then permissions.
func summaryText(m *manifest.Manifest) []byte {
	var b bytes.Buffer

	fmt.Fprintf(&b, "package: %s\n", m.Package)
	if m.VersionCode != "" || m.VersionName != "" {
		fmt.Fprintf(&b, "version: code=%s name=%s\n", m.VersionCode, m.VersionName)
	}
	if m.UsesSdk != (manifest.UsesSdk{}) {
		fmt.Fprintf(&b, "sdk: min=%s target=%s", m.UsesSdk.MinSdkVersion, m.UsesSdk.TargetSdkVersion)
		if m.UsesSdk.MaxSdkVersion != "" {
			fmt.Fprintf(&b, " max=%s", m.UsesSdk.MaxSdkVersion)
		}
		b.WriteByte('\n')
	}

	app := m.Application
	fmt.Fprintf(&b, "application: name=%s label=%s icon=%s\n", app.Name, app.Label, app.Icon)
	if app.Debuggable {
		b.WriteString("application: debuggable\n")
	}
	if main := m.MainActivity(); main != "" {
		fmt.Fprintf(&b, "main activity: %s\n", main)
	}

	writeComponents(&b, "activities", len(app.Activities), func(i int) (string, []manifest.IntentFilter) {
		return app.Activities[i].Name, app.Activities[i].IntentFilters
	})
	writeComponents(&b, "services", len(app.Services), func(i int) (string, []manifest.IntentFilter) {
		return app.Services[i].Name, app.Services[i].IntentFilters
	})
	writeComponents(&b, "receivers", len(app.Receivers), func(i int) (string, []manifest.IntentFilter) {
		return app.Receivers[i].Name, app.Receivers[i].IntentFilters
	})

	if len(app.Providers) > 0 {
		b.WriteString("providers:\n")
		for _, p := range app.Providers {
			fmt.Fprintf(&b, "  %s", p.Name)
			if p.Authorities != "" {
				fmt.Fprintf(&b, " authorities=%s", p.Authorities)
			}
			b.WriteByte('\n')
		}
	}

	if perms := m.PermissionNames(); len(perms) > 0 {
		b.WriteString("permissions:\n")
		for _, p := range perms {
			fmt.Fprintf(&b, "  %s\n", p)
		}
	}

	return b.Bytes()
}

func writeComponents(b *bytes.Buffer, kind string, n int, at func(int) (string, []manifest.IntentFilter)) {
	if n == 0 {
		return
	}
	fmt.Fprintf(b, "%s:\n", kind)
	for i := 0; i < n; i++ {
		name, filters := at(i)
		fmt.Fprintf(b, "  %s\n", name)
		for _, f := range filters {
			fmt.Fprint(b, "    intent-filter:")
			for _, a := range f.Actions {
				fmt.Fprintf(b, " action=%s", a.Name)
			}
			for _, c := range f.Categories {
				fmt.Fprintf(b, " category=%s", c.Name)
			}
			b.WriteByte('\n')
		}
	}
}
