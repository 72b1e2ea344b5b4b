package temporalx

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"time"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/api/workflowservice/v1"
	temporalsdkclient "go.temporal.io/sdk/client"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"

	"github.com/uw-ssec/ca-biositing-sub000/internal/platform/logger"
)

const (
	dialBackoff    = 250 * time.Millisecond
	dialBackoffMax = 5 * time.Second
)

// NewClient dials Temporal, retrying until cfg.DialMaxWait elapses. It
// returns nil, nil when no address is configured.
func NewClient(ctx context.Context, cfg Config, log *logger.Logger) (temporalsdkclient.Client, error) {
	cfg = cfg.Defaults()
	if !cfg.Enabled() {
		if log != nil {
			log.Warn("Temporal address not set; Temporal disabled")
		}
		return nil, nil
	}

	opts, err := clientOptions(cfg, log)
	if err != nil {
		return nil, err
	}
	opts.Namespace = cfg.Namespace

	deadline := time.Now().Add(cfg.DialMaxWait)
	for attempt := 1; ; attempt++ {
		dialCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
		c, err := temporalsdkclient.DialContext(dialCtx, opts)
		cancel()
		if err == nil {
			if log != nil && attempt > 1 {
				log.Info("Connected to Temporal", "address", cfg.Address, "namespace", cfg.Namespace, "attempts", attempt)
			}
			if cfg.AutoRegisterNamespace {
				if err := EnsureNamespace(ctx, cfg, log); err != nil {
					c.Close()
					return nil, err
				}
			}
			return c, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("temporal dial failed (address=%s namespace=%s): %w", cfg.Address, cfg.Namespace, err)
		}
		if log != nil {
			log.Warn("Temporal not reachable; retrying", "address", cfg.Address, "namespace", cfg.Namespace, "attempt", attempt, "error", err)
		}
		if err := sleepCtx(ctx, clampBackoff(dialBackoff, dialBackoffMax, attempt)); err != nil {
			return nil, err
		}
	}
}

func clientOptions(cfg Config, log *logger.Logger) (temporalsdkclient.Options, error) {
	opts := temporalsdkclient.Options{HostPort: cfg.Address}
	if log != nil {
		opts.Logger = log
	}
	if cfg.tlsEnabled() {
		tlsCfg, err := loadTLSConfig(cfg)
		if err != nil {
			return opts, err
		}
		opts.ConnectionOptions.TLS = tlsCfg
	}
	return opts, nil
}

// EnsureNamespace creates cfg.Namespace if it does not exist. Intended for
// self-hosted Temporal; managed namespaces should be provisioned ahead.
func EnsureNamespace(ctx context.Context, cfg Config, log *logger.Logger) error {
	cfg = cfg.Defaults()
	if !cfg.Enabled() {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	// The namespace client carries no namespace header, so it can register
	// one that does not exist yet.
	opts, err := clientOptions(cfg, log)
	if err != nil {
		return err
	}
	nsClient, err := temporalsdkclient.NewNamespaceClient(opts)
	if err != nil {
		return fmt.Errorf("temporal namespace ensure: init namespace client: %w", err)
	}
	defer nsClient.Close()

	for attempt := 1; ; attempt++ {
		if ctx.Err() != nil {
			return fmt.Errorf("temporal namespace ensure: timed out (namespace=%s): %w", cfg.Namespace, ctx.Err())
		}
		_, err := nsClient.Describe(ctx, cfg.Namespace)
		if err == nil {
			return nil
		}
		var nfe *serviceerror.NamespaceNotFound
		if errors.As(err, &nfe) {
			err = nsClient.Register(ctx, &workflowservice.RegisterNamespaceRequest{
				Namespace:                        cfg.Namespace,
				Description:                      "biositing auto-registered namespace",
				WorkflowExecutionRetentionPeriod: durationpb.New(time.Duration(cfg.RetentionDays) * 24 * time.Hour),
			})
			var already *serviceerror.NamespaceAlreadyExists
			if err == nil || errors.As(err, &already) {
				if log != nil {
					log.Info("Registered Temporal namespace", "namespace", cfg.Namespace, "retention_days", cfg.RetentionDays)
				}
				return nil
			}
		}
		if !isRetryableRPC(err) {
			return fmt.Errorf("temporal namespace ensure: %w", err)
		}
		if log != nil {
			log.Warn("Temporal namespace ensure retrying", "namespace", cfg.Namespace, "attempt", attempt, "error", err)
		}
		if err := sleepCtx(ctx, clampBackoff(dialBackoff, dialBackoffMax, attempt)); err != nil {
			return err
		}
	}
}

func loadTLSConfig(cfg Config) (*tls.Config, error) {
	if cfg.ClientCertPath == "" || cfg.ClientKeyPath == "" {
		return nil, fmt.Errorf("temporal tls: both client cert and key paths are required when enabling mTLS")
	}
	cert, err := tls.LoadX509KeyPair(cfg.ClientCertPath, cfg.ClientKeyPath)
	if err != nil {
		return nil, fmt.Errorf("temporal tls: load client cert/key: %w", err)
	}
	tlsCfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}
	if cfg.ClientCAPath != "" {
		pem, err := os.ReadFile(cfg.ClientCAPath)
		if err != nil {
			return nil, fmt.Errorf("temporal tls: read CA: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("temporal tls: invalid CA pem")
		}
		tlsCfg.RootCAs = pool
	}
	return tlsCfg, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func clampBackoff(base, max time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = dialBackoff
	}
	sleep := base
	for i := 1; i < attempt; i++ {
		sleep *= 2
		if max > 0 && sleep >= max {
			return max
		}
	}
	return sleep
}

func isRetryableRPC(err error) bool {
	if err == nil {
		return false
	}
	s, ok := status.FromError(err)
	if !ok {
		return errors.Is(err, context.DeadlineExceeded)
	}
	switch s.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted:
		return true
	default:
		return false
	}
}
