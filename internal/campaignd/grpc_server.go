package campaignd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/GoSim-25-26J-441/exploration-core/internal/history"
	"github.com/GoSim-25-26J-441/exploration-core/pkg/logger"
)

// CampaignServiceName is the fully qualified gRPC service name.
const CampaignServiceName = "exploration.v1.CampaignService"

// CampaignServiceServer is the gRPC surface of a campaign. Requests and
// responses are generic structs carrying the same documents as the HTTP API.
type CampaignServiceServer interface {
	GetStatus(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListTrials(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetTrial(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetBest(context.Context, *structpb.Struct) (*structpb.Struct, error)
	StopCampaign(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// CampaignServiceDesc describes CampaignService for grpc.Server.RegisterService.
var CampaignServiceDesc = grpc.ServiceDesc{
	ServiceName: CampaignServiceName,
	HandlerType: (*CampaignServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetStatus", Handler: unaryHandler("GetStatus", CampaignServiceServer.GetStatus)},
		{MethodName: "ListTrials", Handler: unaryHandler("ListTrials", CampaignServiceServer.ListTrials)},
		{MethodName: "GetTrial", Handler: unaryHandler("GetTrial", CampaignServiceServer.GetTrial)},
		{MethodName: "GetBest", Handler: unaryHandler("GetBest", CampaignServiceServer.GetBest)},
		{MethodName: "StopCampaign", Handler: unaryHandler("StopCampaign", CampaignServiceServer.StopCampaign)},
	},
	Streams: []grpc.StreamDesc{},
}

// RegisterCampaignServiceServer registers srv on s.
func RegisterCampaignServiceServer(s grpc.ServiceRegistrar, srv CampaignServiceServer) {
	s.RegisterService(&CampaignServiceDesc, srv)
}

// FullMethod returns the invoke path of a CampaignService method.
func FullMethod(method string) string {
	return "/" + CampaignServiceName + "/" + method
}

type unaryCall func(CampaignServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(method string, call unaryCall) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(CampaignServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(method)}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(CampaignServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// CampaignGRPCServer serves CampaignService for one campaign.
type CampaignGRPCServer struct {
	campaign Campaign
}

func NewCampaignGRPCServer(campaign Campaign) *CampaignGRPCServer {
	return &CampaignGRPCServer{campaign: campaign}
}

func (s *CampaignGRPCServer) GetStatus(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return toStruct(statusJSON(s.campaign.Snapshot()))
}

// ListTrials accepts an optional "status" filter.
func (s *CampaignGRPCServer) ListTrials(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	trials, err := listTrials(s.campaign.Reader(), req.GetFields()["status"].GetStringValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	return toStruct(map[string]any{
		"campaign_id": s.campaign.CampaignID(),
		"count":       len(trials),
		"trials":      trials,
	})
}

// GetTrial requires a numeric "id".
func (s *CampaignGRPCServer) GetTrial(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	v, ok := req.GetFields()["id"]
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}
	num, isNum := v.GetKind().(*structpb.Value_NumberValue)
	if !isNum || num.NumberValue < 0 || num.NumberValue != float64(int(num.NumberValue)) {
		return nil, status.Error(codes.InvalidArgument, "id must be a non-negative integer")
	}
	tr, found := s.campaign.Reader().Trial(int(num.NumberValue))
	if !found {
		return nil, status.Error(codes.NotFound, "trial not found")
	}
	return toStruct(tr)
}

// GetBest accepts an optional "objective"; the first objective is used otherwise.
// A true "target_fidelity" ranks only trials evaluated at the target fidelity.
func (s *CampaignGRPCServer) GetBest(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	reader := s.campaign.Reader()
	if req.GetFields()["target_fidelity"].GetBoolValue() {
		reader = reader.AtTargetFidelity()
	}
	best, err := reader.Best(req.GetFields()["objective"].GetStringValue())
	if err != nil {
		return nil, queryErrorCode(err)
	}
	return toStruct(best)
}

func (s *CampaignGRPCServer) StopCampaign(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	s.campaign.Stop()
	logger.Info("campaign stop requested over gRPC", "campaign_id", s.campaign.CampaignID())
	return toStruct(statusJSON(s.campaign.Snapshot()))
}

func queryErrorCode(err error) error {
	switch {
	case errors.Is(err, history.ErrUnknownObjective):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, history.ErrNoCompletedTrials):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// toStruct round-trips v through JSON so response documents match the HTTP
// API field for field. v must encode to a JSON object.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("encode response: %v", err))
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("encode response: %v", err))
	}
	return out, nil
}
