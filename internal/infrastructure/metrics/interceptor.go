package metrics

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// UnaryServerInterceptor returns a gRPC interceptor that records metrics for each request.
// exporter may be nil.
func UnaryServerInterceptor(collector *Collector, exporter *PrometheusExporter) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		start := time.Now()
		method := info.FullMethod

		collector.RecordRequest(method)

		resp, err := handler(ctx, req)

		duration := time.Since(start).Seconds()
		code := status.Code(err).String()

		collector.RecordDuration(method, duration)
		collector.RecordCode(method, code)
		if err != nil {
			collector.RecordError(method)
		}

		if exporter != nil {
			exporter.RecordRequest(method, code)
			exporter.RecordDuration(method, duration)
			if err != nil {
				exporter.RecordError(method)
			}
		}

		return resp, err
	}
}
