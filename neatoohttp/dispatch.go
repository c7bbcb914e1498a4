package neatoohttp

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/arc-self/neatoo/authz"
	"github.com/arc-self/neatoo/correlation"
	"github.com/arc-self/neatoo/delegate"
	"github.com/arc-self/neatoo/envelope"
	"github.com/arc-self/neatoo/factory"
	"github.com/arc-self/neatoo/neatooerr"
	"github.com/arc-self/neatoo/wire"
)

// handleDispatch implements §4.5 steps 1-8. Steps 3 and 2 (linked
// cancellation, correlation id) run before step 1 (parsing the envelope).
func (s *Server) handleDispatch(c echo.Context) error {
	start := time.Now()
	req := c.Request()

	// Step 3: linked cancellation from client-disconnect (req.Context(),
	// which net/http already cancels on disconnect) and server shutdown.
	ctx, cancel := linkCancellation(req.Context(), s.done)
	defer cancel()

	// Step 2: correlation id, extracted or generated, echoed back.
	if id := req.Header.Get("X-Correlation-Id"); id != "" {
		ctx = correlation.With(ctx, id)
	} else {
		ctx, _ = correlation.Ensure(ctx)
	}
	corrID, _ := correlation.Get(ctx)
	c.Response().Header().Set("X-Correlation-Id", corrID)
	c.Response().Header().Set("X-Neatoo-Format", s.format.String())
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("neatoo.correlation_id", corrID))

	// One structured line per request, logged once the status is final:
	// delegateName is filled in below as soon as the frame is parsed, and
	// is empty if the request never got that far.
	var delegateName string
	defer func() {
		s.logger.Info("dispatch request",
			zap.String("delegate", delegateName),
			zap.Int("status", c.Response().Status),
			zap.Duration("duration", time.Since(start)),
			zap.String("correlation_id", corrID),
		)
	}()

	if token := bearerToken(req); token != "" {
		ctx = authz.WithBearerToken(ctx, token)
	}

	// Step 1: parse envelope.
	body, err := io.ReadAll(req.Body)
	if err != nil {
		return s.writeError(c, neatooerr.Newf(neatooerr.KindBadRequest, "failed to read request body: %v", err))
	}
	var frame envelope.RequestFrame
	if err := json.Unmarshal(body, &frame); err != nil {
		return s.writeError(c, neatooerr.Newf(neatooerr.KindBadRequest, "malformed request frame: %v", err))
	}
	delegateName = frame.DelegateName

	// Step 4: resolve delegate.
	reg, err := s.delegates.Lookup(frame.DelegateName)
	if err != nil {
		return s.writeError(c, err)
	}

	typeName, op, _, err := delegate.ParseName(frame.DelegateName)
	if err != nil {
		return s.writeError(c, neatooerr.Newf(neatooerr.KindBadRequest, "%v", err))
	}

	// Step 5: decode Parameters[] against recorded ParamTypes.
	if len(frame.Parameters) != len(reg.Signature.ParamTypes) {
		return s.writeError(c, neatooerr.Newf(neatooerr.KindSerializationMismatch,
			"%s: expected %d parameters, got %d", frame.DelegateName, len(reg.Signature.ParamTypes), len(frame.Parameters)))
	}

	codec := wire.New(s.reg, s.format)
	params := make([]any, len(frame.Parameters))
	for i, raw := range frame.Parameters {
		v, err := codec.DecodeAs(raw, reg.Signature.ParamTypes[i])
		if err != nil {
			return s.writeError(c, err)
		}
		params[i] = v
	}

	// Steps 6-7: [Service] resolution already happened when reg.Handler's
	// closure was built at registration time (see delegate.Handler
	// doc); invoke through the Factory Core for the authorize/hooks
	// pipeline.
	result, err := s.core.Invoke(ctx, factory.Invocation{
		TypeName:     typeName,
		DelegateName: frame.DelegateName,
		Operation:    op.ToFactoryOperation(),
		Hooks:        reg.Hooks,
		Method: func(ctx context.Context) (any, error) {
			return reg.Handler(ctx, params)
		},
	})
	if err != nil {
		return s.writeError(c, err)
	}

	// Step 8: encode result.
	var resultBytes []byte
	if reg.Signature.ResultType != nil {
		resultBytes, err = codec.EncodeAs(result, reg.Signature.ResultType)
	} else {
		resultBytes, err = codec.Encode(result)
	}
	if err != nil {
		return s.writeError(c, neatooerr.Newf(neatooerr.KindSerializationMismatch, "%v", err))
	}
	return c.JSONBlob(http.StatusOK, resultBytes)
}

// writeError renders err per the SPEC_FULL §7 status table: a denial gets
// its own {"reason"} body at 403, everything else gets {"kind","message"}
// at the Kind's mapped status.
func (s *Server) writeError(c echo.Context, err error) error {
	e, ok := neatooerr.As(err)
	if !ok {
		s.logger.Error("dispatch: unclassified error surfaced from handler", zap.Error(err))
		e = neatooerr.New(neatooerr.KindDomain, err.Error())
	}
	status := envelope.StatusForKind(e.Kind)
	if e.Kind == neatooerr.KindNotAuthorized {
		return c.JSON(status, envelope.DenialPayload{Reason: e.Reason})
	}
	return c.JSON(status, envelope.ErrorPayload{Kind: e.Kind, Message: e.Message})
}

// bearerToken extracts the raw token from a "Bearer <token>" Authorization
// header, mirroring packages/apisix-go-runner/plugins/authz.go's header
// parsing.
func bearerToken(req *http.Request) string {
	const prefix = "Bearer "
	h := req.Header.Get("Authorization")
	if len(h) > len(prefix) && h[:len(prefix)] == prefix {
		return h[len(prefix):]
	}
	return ""
}
