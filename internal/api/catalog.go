package api

import (
	"context"
	"math"
	"strings"
	"time"

	"muadati/internal/domain"
	"muadati/internal/models"
	"muadati/internal/service"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	CatalogServiceName         = "muadati.catalog.v1.CatalogService"
	CatalogListEquipmentMethod = "/" + CatalogServiceName + "/ListEquipment"
	CatalogGetEquipmentMethod  = "/" + CatalogServiceName + "/GetEquipment"
)

// CatalogServiceServer is the read-only partner catalog. Messages are
// google.protobuf.Struct so partners need no generated stubs.
type CatalogServiceServer interface {
	ListEquipment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetEquipment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var catalogServiceDesc = grpc.ServiceDesc{
	ServiceName: CatalogServiceName,
	HandlerType: (*CatalogServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListEquipment", Handler: listEquipmentHandler},
		{MethodName: "GetEquipment", Handler: getEquipmentHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "muadati/catalog/v1/catalog.proto",
}

func RegisterCatalogServiceServer(s grpc.ServiceRegistrar, srv CatalogServiceServer) {
	s.RegisterService(&catalogServiceDesc, srv)
}

func listEquipmentHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CatalogServiceServer).ListEquipment(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: CatalogListEquipmentMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CatalogServiceServer).ListEquipment(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func getEquipmentHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CatalogServiceServer).GetEquipment(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: CatalogGetEquipmentMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CatalogServiceServer).GetEquipment(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// CatalogClient calls CatalogService over an existing connection.
type CatalogClient struct {
	cc grpc.ClientConnInterface
}

func NewCatalogClient(cc grpc.ClientConnInterface) *CatalogClient {
	return &CatalogClient{cc: cc}
}

func (c *CatalogClient) ListEquipment(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, CatalogListEquipmentMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *CatalogClient) GetEquipment(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, CatalogGetEquipmentMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// CatalogService serves the catalog from the equipment service.
type CatalogService struct {
	equipment *service.EquipmentService
}

func NewCatalogService(equipment *service.EquipmentService) *CatalogService {
	return &CatalogService{equipment: equipment}
}

func (s *CatalogService) ListEquipment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	filter := models.EquipmentFilter{
		City:     stringField(fields, "city"),
		Category: models.Category(stringField(fields, "category")),
		Status:   models.EquipmentStatus(stringField(fields, "status")),
		Search:   stringField(fields, "search"),
	}
	if v, ok := fields["ownerId"]; ok {
		id, err := idValue(v)
		if err != nil {
			return nil, err
		}
		filter.OwnerID = id
	}

	list, err := s.equipment.List(ctx, filter)
	if err != nil {
		return nil, grpcError(err)
	}
	items := make([]any, 0, len(list))
	for _, eq := range list {
		items = append(items, equipmentMap(eq))
	}
	out, err := structpb.NewStruct(map[string]any{"items": items, "count": len(items)})
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to encode response")
	}
	return out, nil
}

func (s *CatalogService) GetEquipment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	v, ok := req.GetFields()["id"]
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}
	id, err := idValue(v)
	if err != nil {
		return nil, err
	}
	eq, err := s.equipment.Get(ctx, id)
	if err != nil {
		return nil, grpcError(err)
	}
	out, err := structpb.NewStruct(equipmentMap(eq))
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to encode response")
	}
	return out, nil
}

func stringField(fields map[string]*structpb.Value, key string) string {
	return strings.TrimSpace(fields[key].GetStringValue())
}

func idValue(v *structpb.Value) (int64, error) {
	n := v.GetNumberValue()
	if n <= 0 || n != math.Trunc(n) || n >= math.MaxInt64 {
		return 0, status.Error(codes.InvalidArgument, "id must be a positive integer")
	}
	return int64(n), nil
}

func equipmentMap(eq *models.Equipment) map[string]any {
	images := make([]any, 0, len(eq.Images))
	for _, img := range eq.Images {
		images = append(images, img)
	}
	m := map[string]any{
		"id":          eq.ID,
		"ownerId":     eq.OwnerID,
		"title":       eq.Title,
		"category":    string(eq.Category),
		"description": eq.Description,
		"pricePerDay": eq.PricePerDay,
		"city":        eq.City,
		"images":      images,
		"phoneNumber": eq.PhoneNumber,
		"status":      string(eq.Status),
		"createdAt":   eq.CreatedAt.UTC().Format(time.RFC3339),
	}
	if eq.PricePerHour != nil {
		m["pricePerHour"] = *eq.PricePerHour
	}
	return m
}

var codeByKind = map[domain.Kind]codes.Code{
	domain.KindValidation:   codes.InvalidArgument,
	domain.KindNotFound:     codes.NotFound,
	domain.KindForbidden:    codes.PermissionDenied,
	domain.KindConflict:     codes.FailedPrecondition,
	domain.KindUnauthorized: codes.Unauthenticated,
	domain.KindRateLimited:  codes.ResourceExhausted,
}

func grpcError(err error) error {
	code, ok := codeByKind[domain.KindOf(err)]
	if !ok {
		return status.Error(codes.Internal, "internal error")
	}
	return status.Error(code, domain.MessageOf(err, code.String()))
}
