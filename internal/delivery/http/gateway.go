package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Harsh-BH/sentinel-judge/internal/delivery/http/middleware"
	"github.com/Harsh-BH/sentinel-judge/internal/domain"
	"github.com/Harsh-BH/sentinel-judge/internal/metrics"
	"github.com/Harsh-BH/sentinel-judge/internal/pool"
	"github.com/Harsh-BH/sentinel-judge/internal/sign"
	"github.com/Harsh-BH/sentinel-judge/internal/usecase"
)

// method is one RPC operation. data is the verified request data.
type method func(ctx context.Context, data json.RawMessage) (any, error)

// Gateway serves the signed RPC methods.
type Gateway struct {
	signer     *sign.Signer
	replay     sign.ReplayGuard
	judge      *usecase.JudgeUsecase
	compileSPJ *usecase.CompileSPJUsecase
	ping       *usecase.PingUsecase
	pool       *pool.WorkerPool
	logger     *zap.Logger
}

// NewGateway creates a new Gateway. A nil replay guard keeps accepted
// signatures in memory.
func NewGateway(
	signer *sign.Signer,
	replay sign.ReplayGuard,
	judgeUC *usecase.JudgeUsecase,
	compileSPJUC *usecase.CompileSPJUsecase,
	pingUC *usecase.PingUsecase,
	workers *pool.WorkerPool,
	logger *zap.Logger,
) *Gateway {
	if replay == nil {
		replay = sign.NewMemoryReplayGuard()
	}
	return &Gateway{
		signer:     signer,
		replay:     replay,
		judge:      judgeUC,
		compileSPJ: compileSPJUC,
		ping:       pingUC,
		pool:       workers,
		logger:     logger,
	}
}

// Ping handles POST /ping
func (g *Gateway) Ping(c *gin.Context) {
	g.serve(c, "ping", func(ctx context.Context, _ json.RawMessage) (any, error) {
		return g.ping.Execute(ctx)
	})
}

// Judge handles POST /judge
func (g *Gateway) Judge(c *gin.Context) {
	g.serve(c, "judge", func(ctx context.Context, data json.RawMessage) (any, error) {
		var req domain.JudgeRequest
		if err := decodeData(data, &req); err != nil {
			return nil, err
		}
		return pool.Do(ctx, g.pool, req.SubmissionID, "judge", func(ctx context.Context) (*domain.JudgeResponse, error) {
			return g.judge.Execute(ctx, &req)
		})
	})
}

// CompileSPJ handles POST /compile_spj
func (g *Gateway) CompileSPJ(c *gin.Context) {
	g.serve(c, "compile_spj", func(ctx context.Context, data json.RawMessage) (any, error) {
		var req domain.CompileSPJRequest
		if err := decodeData(data, &req); err != nil {
			return nil, err
		}
		id := req.TestCaseID + "/" + req.SPJVersion
		return pool.Do(ctx, g.pool, id, "compile_spj", func(ctx context.Context) (*domain.CompileSPJResponse, error) {
			return g.compileSPJ.Execute(ctx, &req)
		})
	})
}

func (g *Gateway) serve(c *gin.Context, name string, m method) {
	log := g.logger.With(
		zap.String("method", name),
		zap.String("request_id", c.GetString(middleware.RequestIDKey)),
	)

	var env sign.Request
	if err := c.ShouldBindJSON(&env); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Request body too large"})
			return
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request envelope"})
		return
	}

	if err := g.authenticate(c.Request.Context(), c.GetHeader(sign.TokenHeader), &env); err != nil {
		if !isSignatureFailure(err) {
			g.reply(c, log, http.StatusOK, nil, err)
			return
		}
		reason := failureReason(err)
		metrics.SignatureFailures.WithLabelValues(reason).Inc()
		log.Warn("Signature verification failed", zap.String("reason", reason), zap.Error(err))
		g.reply(c, log, http.StatusUnauthorized, nil,
			domain.NewError(domain.KindSignatureVerificationFailed, "signature verification failed: %v", err))
		return
	}

	// Sandbox work is never abandoned half way because the caller hung up.
	out, err := g.call(context.WithoutCancel(c.Request.Context()), log, m, env.Data)
	g.reply(c, log, http.StatusOK, out, err)
}

func (g *Gateway) authenticate(ctx context.Context, token string, env *sign.Request) error {
	if err := g.signer.CheckToken(token); err != nil {
		return err
	}
	if err := g.signer.Verify(env.Data, env.Timestamp, env.Signature); err != nil {
		return err
	}

	// A timestamp is accepted up to one window either side of now.
	fresh, err := g.replay.Remember(ctx, env.Signature, 2*g.signer.Window())
	if err != nil {
		return domain.WrapError(domain.KindSystemError, fmt.Errorf("replay guard: %w", err))
	}
	if !fresh {
		return domain.ErrReplayedRequest
	}
	return nil
}

func (g *Gateway) call(ctx context.Context, log *zap.Logger, m method, data json.RawMessage) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Panic recovered in RPC method", zap.Any("panic", r), zap.Stack("stack"))
			out, err = nil, domain.NewError(domain.KindSystemError, "%T: %v", r, r)
		}
	}()
	return m(ctx, data)
}

func (g *Gateway) reply(c *gin.Context, log *zap.Logger, status int, data any, err error) {
	var kind *domain.ErrorKind
	if err != nil {
		k := domain.KindOf(err)
		kind = &k
		data = domain.MessageOf(err)
		if k == domain.KindSystemError {
			log.Error("RPC method failed", zap.Error(err))
		}
	}

	resp, sealErr := g.signer.SealResponse(kind, data)
	if sealErr != nil {
		log.Error("Failed to seal response", zap.Error(sealErr))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to encode response"})
		return
	}
	c.JSON(status, resp)
}

func decodeData(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return domain.NewError(domain.KindInvalidRequest, "missing request data")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return domain.NewError(domain.KindInvalidRequest, "invalid request data: %v", err)
	}
	return nil
}

func isSignatureFailure(err error) bool {
	return errors.Is(err, domain.ErrTokenMismatch) ||
		errors.Is(err, domain.ErrSignatureMismatch) ||
		errors.Is(err, domain.ErrStaleTimestamp) ||
		errors.Is(err, domain.ErrReplayedRequest)
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrTokenMismatch):
		return "token"
	case errors.Is(err, domain.ErrSignatureMismatch):
		return "signature"
	case errors.Is(err, domain.ErrStaleTimestamp):
		return "stale"
	default:
		return "replay"
	}
}
