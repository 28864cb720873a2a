// Package manifest extracts a structured summary from a decoded
// AndroidManifest.xml document: package identity, SDK requirements,
// requested permissions and the declared application components.
//
// It consumes the textual XML produced by the binxml package (or any
// well-formed manifest XML) and deliberately stays shallow: attributes
// keep their textual form, so values that are resource references
// ("@0x7f010001") or raw hex fallbacks come through verbatim rather
// than failing the parse.
package manifest

import (
	"encoding/xml"
	"fmt"
	"strconv"

	"github.com/ariqa-labs/bxml.go/binxml"
)

// Manifest is the root element of AndroidManifest.xml.
//
// Attribute fields match on the local name only, so both
// android:versionCode and a bare versionCode populate VersionCode.
// String fields stay empty when the attribute is absent.
type Manifest struct {
	XMLName         xml.Name         `xml:"manifest"`
	Package         string           `xml:"package,attr"`
	VersionCode     string           `xml:"versionCode,attr"`
	VersionName     string           `xml:"versionName,attr"`
	CompileSdk      string           `xml:"compileSdkVersion,attr"`
	UsesSdk         UsesSdk          `xml:"uses-sdk"`
	UsesPermissions []UsesPermission `xml:"uses-permission"`
	Permissions     []UsesPermission `xml:"permission"`
	Application     Application      `xml:"application"`
}

// UsesSdk carries the SDK level requirements. Levels are kept textual
// because minSdkVersion may legally hold a platform codename ("S")
// instead of a number.
type UsesSdk struct {
	MinSdkVersion    string `xml:"minSdkVersion,attr"`
	TargetSdkVersion string `xml:"targetSdkVersion,attr"`
	MaxSdkVersion    string `xml:"maxSdkVersion,attr"`
}

// UsesPermission is one requested permission.
type UsesPermission struct {
	Name string `xml:"name,attr"`
}

// Application is the application element with its declared components.
type Application struct {
	Name       string     `xml:"name,attr"`
	Label      string     `xml:"label,attr"`
	Icon       string     `xml:"icon,attr"`
	Debuggable bool       `xml:"debuggable,attr"`
	Activities []Activity `xml:"activity"`
	Services   []Service  `xml:"service"`
	Receivers  []Receiver `xml:"receiver"`
	Providers  []Provider `xml:"provider"`
}

// Activity is one activity declaration.
type Activity struct {
	Name          string         `xml:"name,attr"`
	Label         string         `xml:"label,attr"`
	IntentFilters []IntentFilter `xml:"intent-filter"`
}

// Service is one service declaration.
type Service struct {
	Name          string         `xml:"name,attr"`
	IntentFilters []IntentFilter `xml:"intent-filter"`
}

// Receiver is one broadcast receiver declaration.
type Receiver struct {
	Name          string         `xml:"name,attr"`
	IntentFilters []IntentFilter `xml:"intent-filter"`
}

// Provider is one content provider declaration.
type Provider struct {
	Name        string `xml:"name,attr"`
	Authorities string `xml:"authorities,attr"`
}

// IntentFilter is one intent-filter block under a component.
type IntentFilter struct {
	Actions    []Action   `xml:"action"`
	Categories []Category `xml:"category"`
}

// Action is one action inside an intent filter.
type Action struct {
	Name string `xml:"name,attr"`
}

// Category is one category inside an intent filter.
type Category struct {
	Name string `xml:"name,attr"`
}

const (
	actionMain       = "android.intent.action.MAIN"
	categoryLauncher = "android.intent.category.LAUNCHER"
)

// Parse reads a textual AndroidManifest.xml document.
func Parse(xmlText []byte) (*Manifest, error) {
	var m Manifest
	if err := xml.Unmarshal(xmlText, &m); err != nil {
		return nil, fmt.Errorf("manifest: unmarshal: %w", err)
	}
	return &m, nil
}

// FromBinary decodes a binary AndroidManifest.xml and parses the
// resulting document in one step.
func FromBinary(buf []byte) (*Manifest, error) {
	text, err := binxml.Decode(buf)
	if err != nil {
		return nil, err
	}
	return Parse(text)
}

// VersionCodeValue returns versionCode as an integer. ok is false when
// the attribute is absent or not numeric.
func (m *Manifest) VersionCodeValue() (int64, bool) {
	if m.VersionCode == "" {
		return 0, false
	}
	v, err := strconv.ParseInt(m.VersionCode, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// PermissionNames lists permission names, requested ones first and
// then the app's own declarations, each in declaration order.
func (m *Manifest) PermissionNames() []string {
	if len(m.UsesPermissions)+len(m.Permissions) == 0 {
		return nil
	}
	names := make([]string, 0, len(m.UsesPermissions)+len(m.Permissions))
	for _, p := range m.UsesPermissions {
		names = append(names, p.Name)
	}
	for _, p := range m.Permissions {
		names = append(names, p.Name)
	}
	return names
}

// MainActivity returns the name of the activity declaring the
// MAIN/LAUNCHER intent filter, or "" when none does.
func (m *Manifest) MainActivity() string {
	for _, a := range m.Application.Activities {
		for _, f := range a.IntentFilters {
			if f.hasAction(actionMain) && f.hasCategory(categoryLauncher) {
				return a.Name
			}
		}
	}
	return ""
}

func (f *IntentFilter) hasAction(name string) bool {
	for _, a := range f.Actions {
		if a.Name == name {
			return true
		}
	}
	return false
}

func (f *IntentFilter) hasCategory(name string) bool {
	for _, c := range f.Categories {
		if c.Name == name {
			return true
		}
	}
	return false
}
