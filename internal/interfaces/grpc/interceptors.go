package grpc

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Arisex96/bio-mat-new/internal/infrastructure/monitoring/logging"
	"github.com/Arisex96/bio-mat-new/internal/infrastructure/monitoring/prometheus"
)

const healthPrefix = "/grpc.health.v1.Health/"

var errPanicked = status.Error(codes.Internal, "internal server error")

func recoverUnary(log logging.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (resp interface{}, err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("grpc handler panicked",
					logging.String("method", info.FullMethod),
					logging.String("panic", fmt.Sprint(r)),
					logging.String("stack", string(debug.Stack())))
				resp, err = nil, errPanicked
			}
		}()
		return next(ctx, req)
	}
}

func recoverStream(log logging.Logger) grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, next grpc.StreamHandler) (err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("grpc handler panicked",
					logging.String("method", info.FullMethod),
					logging.String("panic", fmt.Sprint(r)))
				err = errPanicked
			}
		}()
		return next(srv, ss)
	}
}

// accessLog logs every unary call except health probes.
func accessLog(log logging.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (interface{}, error) {
		if strings.HasPrefix(info.FullMethod, healthPrefix) {
			return next(ctx, req)
		}
		t0 := time.Now()
		resp, err := next(ctx, req)
		log.Info("grpc call",
			logging.String("method", info.FullMethod),
			logging.String("code", status.Code(err).String()),
			logging.Duration("duration", time.Since(t0)))
		return resp, err
	}
}

func countUnary(m *prometheus.AppMetrics) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (interface{}, error) {
		resp, err := next(ctx, req)
		record(m, info.FullMethod, err)
		return resp, err
	}
}

func countStream(m *prometheus.AppMetrics) grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, next grpc.StreamHandler) error {
		err := next(srv, ss)
		record(m, info.FullMethod, err)
		return err
	}
}

func record(m *prometheus.AppMetrics, fullMethod string, err error) {
	if m == nil {
		return
	}
	service, method := methodParts(fullMethod)
	m.RecordGRPCRequest(service, method, status.Code(err).String())
}

// methodParts splits "/pkg.Service/Method".
func methodParts(full string) (service, method string) {
	full = strings.TrimPrefix(full, "/")
	i := strings.LastIndexByte(full, '/')
	if i < 0 {
		return "unknown", full
	}
	return full[:i], full[i+1:]
}
