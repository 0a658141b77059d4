package campaignd

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

func startGRPC(t *testing.T, camp Campaign) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterCampaignServiceServer(srv, NewCampaignGRPCServer(camp))
	go func() {
		_ = srv.Serve(lis)
	}()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func invoke(t *testing.T, conn *grpc.ClientConn, method string, req map[string]any) (*structpb.Struct, error) {
	t.Helper()
	in, err := structpb.NewStruct(req)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	out := new(structpb.Struct)
	err = conn.Invoke(ctx, FullMethod(method), in, out)
	return out, err
}

func TestGRPCGetStatus(t *testing.T) {
	conn := startGRPC(t, newFakeCampaign(t))
	resp, err := invoke(t, conn, "GetStatus", nil)
	if err != nil {
		t.Fatalf("GetStatus error: %v", err)
	}
	fields := resp.GetFields()
	if fields["campaign_id"].GetStringValue() != "campaign-test" {
		t.Fatalf("unexpected campaign id %v", fields["campaign_id"])
	}
	if fields["busy"].GetNumberValue() != 1 {
		t.Fatalf("expected 1 busy slot, got %v", fields["busy"])
	}
	if got := fields["counts"].GetStructValue().GetFields()["completed"].GetNumberValue(); got != 3 {
		t.Fatalf("expected 3 completed, got %v", got)
	}
}

func TestGRPCListTrials(t *testing.T) {
	conn := startGRPC(t, newFakeCampaign(t))

	resp, err := invoke(t, conn, "ListTrials", map[string]any{"status": "completed"})
	if err != nil {
		t.Fatalf("ListTrials error: %v", err)
	}
	trials := resp.GetFields()["trials"].GetListValue().GetValues()
	if len(trials) != 3 {
		t.Fatalf("expected 3 completed trials, got %d", len(trials))
	}

	_, err = invoke(t, conn, "ListTrials", map[string]any{"status": "bogus"})
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}

func TestGRPCGetTrial(t *testing.T) {
	conn := startGRPC(t, newFakeCampaign(t))

	resp, err := invoke(t, conn, "GetTrial", map[string]any{"id": 3})
	if err != nil {
		t.Fatalf("GetTrial error: %v", err)
	}
	if got := resp.GetFields()["status"].GetStringValue(); got != "running" {
		t.Fatalf("expected trial 3 running, got %q", got)
	}

	if _, err := invoke(t, conn, "GetTrial", map[string]any{"id": 42}); status.Code(err) != codes.NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
	if _, err := invoke(t, conn, "GetTrial", map[string]any{"id": 1.5}); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument for fractional id, got %v", err)
	}
	if _, err := invoke(t, conn, "GetTrial", nil); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument for missing id, got %v", err)
	}
}

func TestGRPCGetBest(t *testing.T) {
	camp := newFakeCampaign(t)
	conn := startGRPC(t, camp)

	resp, err := invoke(t, conn, "GetBest", map[string]any{"objective": "g"})
	if err != nil {
		t.Fatalf("GetBest error: %v", err)
	}
	if got := resp.GetFields()["id"].GetNumberValue(); got != 4 {
		t.Fatalf("expected trial 4, got %v", got)
	}

	if _, err := invoke(t, conn, "GetBest", map[string]any{"objective": "nope"}); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}

	camp.trials = camp.trials[2:4]
	if _, err := invoke(t, conn, "GetBest", nil); status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("expected FailedPrecondition without completed trials, got %v", err)
	}
}

func TestGRPCGetBestAtTargetFidelity(t *testing.T) {
	camp := newFakeCampaign(t)
	target := 0.0
	camp.space.Varying[0].IsFidelity = true
	camp.space.Varying[0].TargetValue = &target
	conn := startGRPC(t, camp)

	resp, err := invoke(t, conn, "GetBest", map[string]any{"target_fidelity": true})
	if err != nil {
		t.Fatalf("GetBest error: %v", err)
	}
	if got := resp.GetFields()["id"].GetNumberValue(); got != 0 {
		t.Fatalf("expected trial 0 at target fidelity, got %v", got)
	}
}

func TestGRPCStopCampaign(t *testing.T) {
	camp := newFakeCampaign(t)
	conn := startGRPC(t, camp)
	if _, err := invoke(t, conn, "StopCampaign", nil); err != nil {
		t.Fatalf("StopCampaign error: %v", err)
	}
	if _, err := invoke(t, conn, "StopCampaign", nil); err != nil {
		t.Fatalf("second StopCampaign error: %v", err)
	}
	if camp.stops.Load() != 2 {
		t.Fatalf("expected both requests to reach the campaign, got %d", camp.stops.Load())
	}
}
