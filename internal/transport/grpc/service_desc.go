package grpc

import (
	"context"

	"google.golang.org/grpc"
)

const ServiceName = "consultations.v1.ConsultationService"

// ConsultationServiceServer is the server API for ConsultationService.
type ConsultationServiceServer interface {
	CreateBooking(context.Context, *CreateBookingRequest) (*BookingResponse, error)
	ListBookings(context.Context, *ListBookingsRequest) (*ListBookingsResponse, error)
	CancelBooking(context.Context, *BookingIDRequest) (*BookingResponse, error)
	CompleteBooking(context.Context, *BookingIDRequest) (*BookingResponse, error)
	CreateConsultationRecord(context.Context, *CreateRecordRequest) (*RecordResponse, error)
	GetConsultationRecord(context.Context, *BookingIDRequest) (*RecordResponse, error)
	ListConsultationHistory(context.Context, *HistoryRequest) (*HistoryResponse, error)
	RegisterParty(context.Context, *RegisterPartyRequest) (*RegisterPartyResponse, error)
}

func RegisterConsultationServiceServer(s grpc.ServiceRegistrar, srv ConsultationServiceServer) {
	s.RegisterService(&ConsultationServiceDesc, srv)
}

// unaryHandler adapts a typed method to grpc.MethodDesc.Handler.
func unaryHandler[Req any, Resp any](method string, call func(ConsultationServiceServer, context.Context, *Req) (*Resp, error)) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ConsultationServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/" + ServiceName + "/" + method,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ConsultationServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var ConsultationServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ConsultationServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateBooking", Handler: unaryHandler("CreateBooking", ConsultationServiceServer.CreateBooking)},
		{MethodName: "ListBookings", Handler: unaryHandler("ListBookings", ConsultationServiceServer.ListBookings)},
		{MethodName: "CancelBooking", Handler: unaryHandler("CancelBooking", ConsultationServiceServer.CancelBooking)},
		{MethodName: "CompleteBooking", Handler: unaryHandler("CompleteBooking", ConsultationServiceServer.CompleteBooking)},
		{MethodName: "CreateConsultationRecord", Handler: unaryHandler("CreateConsultationRecord", ConsultationServiceServer.CreateConsultationRecord)},
		{MethodName: "GetConsultationRecord", Handler: unaryHandler("GetConsultationRecord", ConsultationServiceServer.GetConsultationRecord)},
		{MethodName: "ListConsultationHistory", Handler: unaryHandler("ListConsultationHistory", ConsultationServiceServer.ListConsultationHistory)},
		{MethodName: "RegisterParty", Handler: unaryHandler("RegisterParty", ConsultationServiceServer.RegisterParty)},
	},
	Streams: []grpc.StreamDesc{},
}
