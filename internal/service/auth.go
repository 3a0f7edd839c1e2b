package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"

	youbuidl "github.com/givestation/youbuidl-sync"
)

var tracer = otel.Tracer("auth")

// AuthService verifies personal-sign auth tokens of the form
// "<address>:<unix-ts>:<0x-signature>" where the signature covers the
// challenge for that timestamp.
type AuthService struct {
	window time.Duration
	now    func() time.Time
}

func NewAuthService(windowSeconds int64) *AuthService {
	return &AuthService{
		window: time.Duration(windowSeconds) * time.Second,
		now:    time.Now,
	}
}

type AuthResult struct {
	Address string
}

func (s *AuthService) Verify(ctx context.Context, token string) (*AuthResult, error) {
	_, span := tracer.Start(ctx, "Auth.Service.Verify")
	defer span.End()

	parts := strings.SplitN(token, ":", 3)
	if len(parts) != 3 {
		err := fmt.Errorf("malformed auth token")
		span.RecordError(err)
		return nil, err
	}

	address, err := youbuidl.NormalizeAddress(parts[0])
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	ts, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		span.RecordError(errors.Wrap(err, "invalid auth timestamp"))
		return nil, errors.Wrap(err, "invalid auth timestamp")
	}

	drift := s.now().Sub(time.Unix(ts, 0))
	if drift > s.window || drift < -s.window {
		err := fmt.Errorf("auth token expired")
		span.RecordError(err)
		return nil, err
	}

	sig, err := hexutil.Decode(parts[2])
	if err != nil {
		span.RecordError(errors.Wrap(err, "invalid signature encoding"))
		return nil, errors.Wrap(err, "invalid signature encoding")
	}
	if len(sig) != 65 {
		err := fmt.Errorf("invalid signature length: %d", len(sig))
		span.RecordError(err)
		return nil, err
	}

	// Wallets emit V as 27/28, crypto.SigToPub wants 0/1.
	if sig[64] >= 27 {
		sig = append([]byte(nil), sig...)
		sig[64] -= 27
	}

	hash := youbuidl.PersonalSignHash(youbuidl.AuthMessage(ts))
	pubkey, err := crypto.SigToPub(hash, sig)
	if err != nil {
		span.RecordError(errors.Wrap(err, "signature recovery failed"))
		return nil, errors.Wrap(err, "signature recovery failed")
	}

	recovered := strings.ToLower(crypto.PubkeyToAddress(*pubkey).Hex())
	if recovered != address {
		err := fmt.Errorf("signature does not match address")
		span.RecordError(err)
		return nil, err
	}

	return &AuthResult{Address: address}, nil
}
