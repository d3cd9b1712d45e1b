package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"barbershop/internal/models"
	"barbershop/internal/schedule"
	"barbershop/internal/service"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// Messages on barbershop.v1.Scheduling are google.protobuf.Struct values carrying the
// same JSON shapes as the HTTP API.
const (
	schedulingServiceName = "barbershop.v1.Scheduling"

	methodResolveDay      = "/" + schedulingServiceName + "/ResolveDay"
	methodListSlots       = "/" + schedulingServiceName + "/ListSlots"
	methodCheckSlot       = "/" + schedulingServiceName + "/CheckSlot"
	methodBookAppointment = "/" + schedulingServiceName + "/BookAppointment"
)

type SchedulingServer interface {
	ResolveDay(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListSlots(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CheckSlot(context.Context, *structpb.Struct) (*structpb.Struct, error)
	BookAppointment(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func RegisterSchedulingServer(s grpc.ServiceRegistrar, srv SchedulingServer) {
	s.RegisterService(&schedulingServiceDesc, srv)
}

var schedulingServiceDesc = grpc.ServiceDesc{
	ServiceName: schedulingServiceName,
	HandlerType: (*SchedulingServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ResolveDay", Handler: unaryHandler(methodResolveDay, SchedulingServer.ResolveDay)},
		{MethodName: "ListSlots", Handler: unaryHandler(methodListSlots, SchedulingServer.ListSlots)},
		{MethodName: "CheckSlot", Handler: unaryHandler(methodCheckSlot, SchedulingServer.CheckSlot)},
		{MethodName: "BookAppointment", Handler: unaryHandler(methodBookAppointment, SchedulingServer.BookAppointment)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "barbershop/v1/scheduling.proto",
}

func unaryHandler(fullMethod string, call func(SchedulingServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(SchedulingServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(SchedulingServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// SchedulingClient calls barbershop.v1.Scheduling.
type SchedulingClient struct {
	cc grpc.ClientConnInterface
}

func NewSchedulingClient(cc grpc.ClientConnInterface) *SchedulingClient {
	return &SchedulingClient{cc: cc}
}

func (c *SchedulingClient) call(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *SchedulingClient) ResolveDay(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.call(ctx, methodResolveDay, in, opts...)
}

func (c *SchedulingClient) ListSlots(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.call(ctx, methodListSlots, in, opts...)
}

func (c *SchedulingClient) CheckSlot(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.call(ctx, methodCheckSlot, in, opts...)
}

func (c *SchedulingClient) BookAppointment(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.call(ctx, methodBookAppointment, in, opts...)
}

// SchedulingService serves the gRPC API on top of the application services.
type SchedulingService struct {
	svc Services
	loc *time.Location
}

func NewSchedulingService(svc Services) *SchedulingService {
	return &SchedulingService{svc: svc, loc: svc.Schedules.Location()}
}

type dayRequest struct {
	BarberID string `json:"barberId"`
	Date     string `json:"date"`
}

type grpcCheckRequest struct {
	BarberID string `json:"barberId"`
	checkRequest
}

func (s *SchedulingService) ResolveDay(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req dayRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, grpcError(err)
	}
	date, err := models.ParseDay(req.Date, s.loc)
	if err != nil {
		return nil, grpcError(err)
	}
	day, err := s.svc.Schedules.ResolveDay(ctx, req.BarberID, date)
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(day)
}

func (s *SchedulingService) ListSlots(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req dayRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, grpcError(err)
	}
	date, err := models.ParseDay(req.Date, s.loc)
	if err != nil {
		return nil, grpcError(err)
	}
	minutes, err := s.svc.Schedules.SlotMinutes(ctx, req.BarberID)
	if err != nil {
		return nil, grpcError(err)
	}
	slots, err := s.svc.Schedules.AvailableSlots(ctx, req.BarberID, date)
	if err != nil {
		return nil, grpcError(err)
	}
	resp := slotsResponse{
		BarberID:    req.BarberID,
		Date:        models.DayKey(date),
		SlotMinutes: minutes,
		Slots:       make([]string, 0, len(slots)),
	}
	for _, t := range slots {
		resp.Slots = append(resp.Slots, models.ClockOf(t).String())
	}
	return toStruct(resp)
}

func (s *SchedulingService) CheckSlot(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req grpcCheckRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, grpcError(err)
	}
	start, err := s.start(req.Date, req.Time)
	if err != nil {
		return nil, grpcError(err)
	}
	if req.Duration == 0 {
		if req.Duration, err = s.svc.Schedules.SlotMinutes(ctx, req.BarberID); err != nil {
			return nil, grpcError(err)
		}
	}
	decision, err := s.svc.Schedules.CheckSlot(ctx, schedule.Candidate{
		BarberID: req.BarberID,
		Start:    start,
		Duration: time.Duration(req.Duration) * time.Minute,
	})
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(checkResponse{
		Available: decision.OK(),
		Reason:    decision.Reason,
		Message:   decision.Reason.Message(),
		Conflict:  decision.Conflict,
	})
}

func (s *SchedulingService) BookAppointment(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req bookRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, grpcError(err)
	}
	start, err := s.start(req.Date, req.Time)
	if err != nil {
		return nil, grpcError(err)
	}
	appt, err := s.svc.Booking.Book(ctx, service.BookingRequest{
		BarberID:    req.BarberID,
		TreatmentID: req.TreatmentID,
		Start:       start,
		Duration:    req.Duration,
		UserID:      req.UserID,
		Manual:      req.Manual,
		ClientName:  req.ClientName,
		ClientPhone: req.ClientPhone,
	})
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(appt)
}

func (s *SchedulingService) start(date, clock string) (time.Time, error) {
	day, err := models.ParseDay(date, s.loc)
	if err != nil {
		return time.Time{}, err
	}
	c, err := models.ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	return c.On(day), nil
}

// grpcError converts a service error into a status carrying the same message the HTTP
// API would return.
func grpcError(err error) error {
	body := newErrorBody(err)
	msg := body.Error
	if body.Reason != "" {
		msg = body.Reason + ": " + msg
	}
	return status.Error(grpcCode(err), msg)
}

func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, grpcError(fmt.Errorf("failed to encode response: %w", err))
	}
	out := new(structpb.Struct)
	if err := out.UnmarshalJSON(raw); err != nil {
		return nil, grpcError(fmt.Errorf("failed to encode response: %w", err))
	}
	return out, nil
}

func fromStruct(in *structpb.Struct, v any) error {
	raw, err := in.MarshalJSON()
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrMissingField, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", models.ErrMissingField, err)
	}
	return nil
}
