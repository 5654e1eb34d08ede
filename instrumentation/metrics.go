package instrumentation

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Token kinds reported on the issued counter.
const (
	TokenKindAccess   = "access_token"
	TokenKindRefresh  = "refresh_token"
	TokenKindAuthCode = "auth_code"
)

type Metrics struct {
	TokensIssued          metric.Int64Counter
	TokenRequests         metric.Int64Counter
	AuthorizationRequests metric.Int64Counter
	RequestFailures       metric.Int64Counter
	ResourceValidations   metric.Int64Counter
}

func newMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.TokensIssued, err = meter.Int64Counter(
		"oauth.tokens.issued",
		metric.WithDescription("Number of tokens and authorization codes issued"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tokens.issued counter: %w", err)
	}

	m.TokenRequests, err = meter.Int64Counter(
		"oauth.token.requests",
		metric.WithDescription("Number of access token requests handled"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create token.requests counter: %w", err)
	}

	m.AuthorizationRequests, err = meter.Int64Counter(
		"oauth.authorization.requests",
		metric.WithDescription("Number of authorization requests validated"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create authorization.requests counter: %w", err)
	}

	m.RequestFailures, err = meter.Int64Counter(
		"oauth.request.failures",
		metric.WithDescription("Number of requests rejected with an OAuth error"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request.failures counter: %w", err)
	}

	m.ResourceValidations, err = meter.Int64Counter(
		"oauth.resource.validations",
		metric.WithDescription("Number of bearer token validations on protected resources"),
		metric.WithUnit("{validation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource.validations counter: %w", err)
	}

	return m, nil
}

func (m *Metrics) RecordTokenIssued(ctx context.Context, clientID, grantType, kind string) {
	m.TokensIssued.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrClientID, clientID),
		attribute.String(AttrGrantType, grantType),
		attribute.String(AttrTokenKind, kind),
	))
}

func (m *Metrics) RecordTokenRequest(ctx context.Context, grantType string) {
	m.TokenRequests.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrGrantType, grantType)))
}

func (m *Metrics) RecordAuthorizationRequest(ctx context.Context, grantType string) {
	m.AuthorizationRequests.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrGrantType, grantType)))
}

// RecordRequestFailure counts a rejected request by grant and OAuth error code.
func (m *Metrics) RecordRequestFailure(ctx context.Context, grantType, errorCode string) {
	m.RequestFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrGrantType, grantType),
		attribute.String(AttrError, errorCode),
	))
}

func (m *Metrics) RecordResourceValidation(ctx context.Context, valid bool) {
	m.ResourceValidations.Add(ctx, 1, metric.WithAttributes(attribute.Bool("oauth.valid", valid)))
}
