// Package enroll builds the enrollment configuration profile a device
// installs to join MDM management.
package enroll

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"howett.net/plist"

	"github.com/nerrad567/gray-logic-mdm/internal/infrastructure/config"
)

// ContentType is the MIME type iOS expects for a configuration profile.
const ContentType = "application/x-apple-aspen-config"

// Filename is suggested to the browser when the profile is downloaded.
const Filename = "enroll.mobileconfig"

// Profile payload constants.
const (
	mdmPayloadIdentifierSuffix = ".mdm"
	payloadVersion             = 1

	// accessRightsAll grants every MDM access right (bits 0-12).
	accessRightsAll = 8191

	// identityPlaceholder stands in for a SCEP or PKCS#12 identity payload,
	// which this server does not issue.
	identityPlaceholder = "identity-placeholder"
)

type mdmPayload struct {
	PayloadType         string `plist:"PayloadType"`
	PayloadVersion      int    `plist:"PayloadVersion"`
	PayloadIdentifier   string `plist:"PayloadIdentifier"`
	PayloadUUID         string `plist:"PayloadUUID"`
	PayloadDisplayName  string `plist:"PayloadDisplayName"`
	PayloadDescription  string `plist:"PayloadDescription"`
	PayloadOrganization string `plist:"PayloadOrganization"`

	ServerURL               string   `plist:"ServerURL"`
	CheckInURL              string   `plist:"CheckInURL"`
	Topic                   string   `plist:"Topic"`
	AccessRights            int      `plist:"AccessRights"`
	CheckOutWhenRemoved     bool     `plist:"CheckOutWhenRemoved"`
	ServerCapabilities      []string `plist:"ServerCapabilities"`
	IdentityCertificateUUID string   `plist:"IdentityCertificateUUID"`
	SignMessage             bool     `plist:"SignMessage"`
}

type configurationProfile struct {
	PayloadContent           []mdmPayload `plist:"PayloadContent"`
	PayloadDisplayName       string       `plist:"PayloadDisplayName"`
	PayloadDescription       string       `plist:"PayloadDescription"`
	PayloadIdentifier        string       `plist:"PayloadIdentifier"`
	PayloadOrganization      string       `plist:"PayloadOrganization"`
	PayloadRemovalDisallowed bool         `plist:"PayloadRemovalDisallowed"`
	PayloadType              string       `plist:"PayloadType"`
	PayloadUUID              string       `plist:"PayloadUUID"`
	PayloadVersion           int          `plist:"PayloadVersion"`
}

// Info tells an administrator where devices fetch the profile.
type Info struct {
	EnrollmentURL string `json:"enrollmentUrl"`
	Instructions  string `json:"instructions"`
}

// Generator produces enrollment profiles for one server.
type Generator struct {
	baseURL      string
	topic        string
	identifier   string
	organization string
	displayName  string
	newUUID      func() string
}

// NewGenerator creates a Generator from the server and MDM settings.
func NewGenerator(server config.ServerConfig, mdm config.MDMConfig) *Generator {
	return &Generator{
		baseURL:      strings.TrimRight(server.BaseURL, "/"),
		topic:        mdm.Topic,
		identifier:   mdm.ProfileIdentifier,
		organization: mdm.Organization,
		displayName:  mdm.DisplayName,
		newUUID:      uuid.NewString,
	}
}

// ServerURL is the server (poll) channel address.
func (g *Generator) ServerURL() string { return g.baseURL + "/mdm/server" }

// CheckInURL is the check-in channel address.
func (g *Generator) CheckInURL() string { return g.baseURL + "/mdm/checkin" }

// Info returns the enrollment URL and instructions.
func (g *Generator) Info() Info {
	return Info{
		EnrollmentURL: g.baseURL + "/enroll/profile",
		Instructions:  "Open this URL on the iPhone to download and install the enrollment profile.",
	}
}

// Profile renders a fresh, unsigned enrollment profile. Every call gets new
// PayloadUUIDs.
func (g *Generator) Profile() ([]byte, error) {
	p := configurationProfile{
		PayloadContent: []mdmPayload{{
			PayloadType:         "com.apple.mdm",
			PayloadVersion:      payloadVersion,
			PayloadIdentifier:   g.mdmIdentifier(),
			PayloadUUID:         g.newUUID(),
			PayloadDisplayName:  g.organization,
			PayloadDescription:  "Enrolls this device in MDM management",
			PayloadOrganization: g.organization,

			ServerURL:               g.ServerURL(),
			CheckInURL:              g.CheckInURL(),
			Topic:                   g.topic,
			AccessRights:            accessRightsAll,
			CheckOutWhenRemoved:     true,
			ServerCapabilities:      []string{"com.apple.mdm.per-user-connections"},
			IdentityCertificateUUID: identityPlaceholder,
			SignMessage:             true,
		}},
		PayloadDisplayName:  g.displayName,
		PayloadDescription:  "Install this profile to enroll your device in MDM management.",
		PayloadIdentifier:   g.identifier,
		PayloadOrganization: g.organization,
		PayloadType:         "Configuration",
		PayloadUUID:         g.newUUID(),
		PayloadVersion:      payloadVersion,
	}

	out, err := plist.MarshalIndent(p, plist.XMLFormat, "\t")
	if err != nil {
		return nil, fmt.Errorf("encoding enrollment profile: %w", err)
	}
	return out, nil
}

// mdmIdentifier derives the MDM payload identifier from the profile
// identifier: com.example.enrollment becomes com.example.mdm.
func (g *Generator) mdmIdentifier() string {
	base := g.identifier
	if i := strings.LastIndex(base, "."); i > 0 {
		base = base[:i]
	}
	return base + mdmPayloadIdentifierSuffix
}
