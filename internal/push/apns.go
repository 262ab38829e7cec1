package push

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/certificate"

	"github.com/nerrad567/gray-logic-mdm/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-mdm/internal/infrastructure/logging"
)

const defaultAPNsTimeout = 10 * time.Second

// mdmPayload is the whole APNs body for an MDM wake signal.
type mdmPayload struct {
	MDM string `json:"mdm"`
}

// APNsNotifier sends MDM wake signals through Apple's push service using
// the MDM push certificate.
type APNsNotifier struct {
	client       *apns2.Client
	defaultTopic string
	timeout      time.Duration
	logger       Logger
}

// NewAPNsNotifier loads the push certificate and builds an HTTP/2 client
// for the production or development gateway.
//
// The certificate may be a PKCS#12 bundle (.p12/.pfx), a PEM file holding
// both certificate and key, or a PEM certificate with a separate key_file.
func NewAPNsNotifier(cfg config.APNsConfig, defaultTopic string, logger Logger) (*APNsNotifier, error) {
	cert, err := loadCertificate(cfg)
	if err != nil {
		return nil, err
	}

	client := apns2.NewClient(cert)
	if cfg.Production {
		client = client.Production()
	} else {
		client = client.Development()
	}

	timeout := defaultAPNsTimeout
	if cfg.Timeout > 0 {
		timeout = time.Duration(cfg.Timeout) * time.Second
	}
	return newAPNsNotifier(client, defaultTopic, timeout, logger), nil
}

func newAPNsNotifier(client *apns2.Client, defaultTopic string, timeout time.Duration, logger Logger) *APNsNotifier {
	if logger == nil {
		logger = noopLogger{}
	}
	return &APNsNotifier{
		client:       client,
		defaultTopic: defaultTopic,
		timeout:      timeout,
		logger:       logger,
	}
}

func loadCertificate(cfg config.APNsConfig) (tls.Certificate, error) {
	var (
		cert tls.Certificate
		err  error
	)
	switch {
	case cfg.KeyFile != "":
		cert, err = tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	case isPKCS12(cfg.CertFile):
		cert, err = certificate.FromP12File(cfg.CertFile, cfg.Passphrase)
	default:
		cert, err = certificate.FromPemFile(cfg.CertFile, cfg.Passphrase)
	}
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("%w: %s: %w", ErrCertificate, cfg.CertFile, err)
	}
	return cert, nil
}

func isPKCS12(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".p12", ".pfx":
		return true
	}
	return false
}

// Send posts {"mdm": PushMagic} to the device token on the device's topic.
func (a *APNsNotifier) Send(ctx context.Context, t Target) (Result, error) {
	if !t.hasCredentials() {
		return Result{}, fmt.Errorf("%w: %w: %s", ErrDeliveryFailed, ErrMissingCredentials, t.UDID)
	}

	body, err := json.Marshal(mdmPayload{MDM: t.PushMagic})
	if err != nil {
		return Result{}, fmt.Errorf("%w: encoding payload: %w", ErrDeliveryFailed, err)
	}

	notification := &apns2.Notification{
		DeviceToken: t.PushToken,
		Topic:       resolveTopic(t, a.defaultTopic),
		Payload:     body,
		PushType:    apns2.PushTypeMDM,
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	res, err := a.client.PushWithContext(ctx, notification)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}
	if !res.Sent() {
		a.logger.Warn("apns rejected push",
			"udid", t.UDID,
			"status", res.StatusCode,
			"reason", res.Reason,
			"push_token", logging.Redact(t.PushToken),
		)
		return Result{}, fmt.Errorf("%w: apns status %d: %s", ErrDeliveryFailed, res.StatusCode, res.Reason)
	}

	a.logger.Debug("apns push sent", "udid", t.UDID, "apns_id", res.ApnsID)
	return Result{Success: true, Message: "Push notification sent.", ID: res.ApnsID}, nil
}

// Mode returns "apns".
func (a *APNsNotifier) Mode() string { return "apns" }
