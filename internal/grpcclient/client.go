package grpcclient

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/example/facematch/internal/extractor"
	"github.com/example/facematch/internal/logging"
	"github.com/example/facematch/internal/matcher"
)

// ExtractMethod is the unary RPC served by the embedding extractor. It takes the
// image as a BytesValue and answers with the embedding as a ListValue of numbers.
const ExtractMethod = "/facematch.v1.EmbeddingExtractor/Extract"

// DialExtractor returns a ready-to-use gRPC client for the embedding extractor.
func DialExtractor(ctx context.Context, addr string, timeout time.Duration, logger *zap.Logger) (extractor.Client, *grpc.ClientConn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := grpc.DialContext(
		dialCtx,
		addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
	)
	if err != nil {
		wrapped := logging.NewOperationError("grpcclient.dial_extractor", "", err)
		logger.Error("failed to dial embedding extractor", zap.Error(wrapped), zap.String("addr", addr))
		return nil, nil, wrapped
	}
	return NewExtractor(conn, logger), conn, nil
}

// NewExtractor wraps an existing connection.
func NewExtractor(conn grpc.ClientConnInterface, logger *zap.Logger) extractor.Client {
	return &grpcExtractor{conn: conn, logger: logger.Named("grpc_extractor")}
}

type grpcExtractor struct {
	conn   grpc.ClientConnInterface
	logger *zap.Logger
}

func (g *grpcExtractor) Extract(ctx context.Context, ownerID string, image []byte) (matcher.Embedding, error) {
	ctx = metadata.AppendToOutgoingContext(ctx, "owner-id", ownerID)

	resp := &structpb.ListValue{}
	if err := g.conn.Invoke(ctx, ExtractMethod, wrapperspb.Bytes(image), resp); err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, extractor.ErrNoFace
		}
		wrapped := logging.NewOperationError("grpcclient.extract", ownerID, err)
		g.logger.Error("embedding extractor call failed", zap.Error(wrapped), zap.String("owner_id", ownerID))
		return nil, wrapped
	}

	return decodeEmbedding(resp)
}

func decodeEmbedding(list *structpb.ListValue) (matcher.Embedding, error) {
	values := list.GetValues()
	if len(values) == 0 {
		return nil, extractor.ErrNoFace
	}
	embedding := make(matcher.Embedding, len(values))
	for i, v := range values {
		n, ok := v.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return nil, fmt.Errorf("grpcclient: embedding component %d is not a number", i)
		}
		embedding[i] = float32(n.NumberValue)
	}
	if err := matcher.ValidateQuery(embedding); err != nil {
		return nil, fmt.Errorf("grpcclient: %w", err)
	}
	return embedding, nil
}
