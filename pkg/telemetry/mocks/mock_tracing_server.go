package mocks

import (
	"context"
	"net"
	"sync"

	otlpcollector "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	"google.golang.org/grpc"
)

// MockTracingServer is an OTLP trace collector that counts what it receives.
type MockTracingServer struct {
	otlpcollector.UnimplementedTraceServiceServer

	server    *grpc.Server
	addr      string
	serviceMu sync.Mutex
	spans     []string
}

func (s *MockTracingServer) Export(_ context.Context, req *otlpcollector.ExportTraceServiceRequest) (*otlpcollector.ExportTraceServiceResponse, error) {
	s.serviceMu.Lock()
	defer s.serviceMu.Unlock()
	for _, rs := range req.GetResourceSpans() {
		for _, ss := range rs.GetScopeSpans() {
			for _, span := range ss.GetSpans() {
				s.spans = append(s.spans, span.GetName())
			}
		}
	}
	return &otlpcollector.ExportTraceServiceResponse{}, nil
}

// NewMockTracingServer starts a collector on a random local port.
func NewMockTracingServer() (*MockTracingServer, error) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	mockServer := &MockTracingServer{
		server: grpc.NewServer(),
		addr:   lis.Addr().String(),
	}
	otlpcollector.RegisterTraceServiceServer(mockServer.server, mockServer)
	go func() {
		_ = mockServer.server.Serve(lis)
	}()
	return mockServer, nil
}

// Addr returns the host:port the collector listens on.
func (s *MockTracingServer) Addr() string {
	return s.addr
}

// SpanNames returns the names of the received spans in arrival order.
func (s *MockTracingServer) SpanNames() []string {
	s.serviceMu.Lock()
	defer s.serviceMu.Unlock()
	return append([]string(nil), s.spans...)
}

func (s *MockTracingServer) Stop() {
	s.server.Stop()
}
