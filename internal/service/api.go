package service

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/tabsplit/internal/models"
)

// SessionServiceName is the fully-qualified name of the session service.
const SessionServiceName = "tabsplit.v1.SessionService"

// Procedure paths of the session service.
const (
	CreateSessionProcedure     = "/tabsplit.v1.SessionService/CreateSession"
	JoinSessionProcedure       = "/tabsplit.v1.SessionService/JoinSession"
	GetSessionProcedure        = "/tabsplit.v1.SessionService/GetSession"
	AddParticipantProcedure    = "/tabsplit.v1.SessionService/AddParticipant"
	RemoveParticipantProcedure = "/tabsplit.v1.SessionService/RemoveParticipant"
	UpdateSettingsProcedure    = "/tabsplit.v1.SessionService/UpdateSettings"
	AddItemProcedure           = "/tabsplit.v1.SessionService/AddItem"
	EditItemProcedure          = "/tabsplit.v1.SessionService/EditItem"
	DeleteItemProcedure        = "/tabsplit.v1.SessionService/DeleteItem"
	ToggleAssignmentProcedure  = "/tabsplit.v1.SessionService/ToggleAssignment"
	GetSettlementProcedure     = "/tabsplit.v1.SessionService/GetSettlement"
	SubscribeProcedure         = "/tabsplit.v1.SessionService/Subscribe"
)

// NewSessionServiceHandler builds an HTTP handler serving every procedure of
// svc. It returns the path prefix to mount the handler on.
func NewSessionServiceHandler(svc *SessionService, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(JSONCodec{})}, opts...)

	mux := http.NewServeMux()
	mux.Handle(CreateSessionProcedure, connect.NewUnaryHandler(CreateSessionProcedure, svc.CreateSession, opts...))
	mux.Handle(JoinSessionProcedure, connect.NewUnaryHandler(JoinSessionProcedure, svc.JoinSession, opts...))
	mux.Handle(GetSessionProcedure, connect.NewUnaryHandler(GetSessionProcedure, svc.GetSession, opts...))
	mux.Handle(AddParticipantProcedure, connect.NewUnaryHandler(AddParticipantProcedure, svc.AddParticipant, opts...))
	mux.Handle(RemoveParticipantProcedure, connect.NewUnaryHandler(RemoveParticipantProcedure, svc.RemoveParticipant, opts...))
	mux.Handle(UpdateSettingsProcedure, connect.NewUnaryHandler(UpdateSettingsProcedure, svc.UpdateSettings, opts...))
	mux.Handle(AddItemProcedure, connect.NewUnaryHandler(AddItemProcedure, svc.AddItem, opts...))
	mux.Handle(EditItemProcedure, connect.NewUnaryHandler(EditItemProcedure, svc.EditItem, opts...))
	mux.Handle(DeleteItemProcedure, connect.NewUnaryHandler(DeleteItemProcedure, svc.DeleteItem, opts...))
	mux.Handle(ToggleAssignmentProcedure, connect.NewUnaryHandler(ToggleAssignmentProcedure, svc.ToggleAssignment, opts...))
	mux.Handle(GetSettlementProcedure, connect.NewUnaryHandler(GetSettlementProcedure, svc.GetSettlement, opts...))
	mux.Handle(SubscribeProcedure, connect.NewServerStreamHandler(SubscribeProcedure, svc.Subscribe, opts...))

	return "/" + SessionServiceName + "/", mux
}

// SessionServiceClient calls the session service over the Connect protocol.
type SessionServiceClient struct {
	createSession     *connect.Client[CreateSessionRequest, JoinResponse]
	joinSession       *connect.Client[JoinSessionRequest, JoinResponse]
	getSession        *connect.Client[GetSessionRequest, GetSessionResponse]
	addParticipant    *connect.Client[AddParticipantRequest, AddParticipantResponse]
	removeParticipant *connect.Client[RemoveParticipantRequest, MutationResponse]
	updateSettings    *connect.Client[UpdateSettingsRequest, UpdateSettingsResponse]
	addItem           *connect.Client[AddItemRequest, ItemResponse]
	editItem          *connect.Client[EditItemRequest, ItemResponse]
	deleteItem        *connect.Client[DeleteItemRequest, MutationResponse]
	toggleAssignment  *connect.Client[ToggleAssignmentRequest, ToggleAssignmentResponse]
	getSettlement     *connect.Client[GetSettlementRequest, GetSettlementResponse]
	subscribe         *connect.Client[SubscribeRequest, models.Event]
}

// NewSessionServiceClient creates a client for the service at baseURL
// (e.g. http://localhost:8080).
func NewSessionServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *SessionServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(JSONCodec{})}, opts...)
	return &SessionServiceClient{
		createSession:     connect.NewClient[CreateSessionRequest, JoinResponse](httpClient, baseURL+CreateSessionProcedure, opts...),
		joinSession:       connect.NewClient[JoinSessionRequest, JoinResponse](httpClient, baseURL+JoinSessionProcedure, opts...),
		getSession:        connect.NewClient[GetSessionRequest, GetSessionResponse](httpClient, baseURL+GetSessionProcedure, opts...),
		addParticipant:    connect.NewClient[AddParticipantRequest, AddParticipantResponse](httpClient, baseURL+AddParticipantProcedure, opts...),
		removeParticipant: connect.NewClient[RemoveParticipantRequest, MutationResponse](httpClient, baseURL+RemoveParticipantProcedure, opts...),
		updateSettings:    connect.NewClient[UpdateSettingsRequest, UpdateSettingsResponse](httpClient, baseURL+UpdateSettingsProcedure, opts...),
		addItem:           connect.NewClient[AddItemRequest, ItemResponse](httpClient, baseURL+AddItemProcedure, opts...),
		editItem:          connect.NewClient[EditItemRequest, ItemResponse](httpClient, baseURL+EditItemProcedure, opts...),
		deleteItem:        connect.NewClient[DeleteItemRequest, MutationResponse](httpClient, baseURL+DeleteItemProcedure, opts...),
		toggleAssignment:  connect.NewClient[ToggleAssignmentRequest, ToggleAssignmentResponse](httpClient, baseURL+ToggleAssignmentProcedure, opts...),
		getSettlement:     connect.NewClient[GetSettlementRequest, GetSettlementResponse](httpClient, baseURL+GetSettlementProcedure, opts...),
		subscribe:         connect.NewClient[SubscribeRequest, models.Event](httpClient, baseURL+SubscribeProcedure, opts...),
	}
}

func (c *SessionServiceClient) CreateSession(ctx context.Context, req *connect.Request[CreateSessionRequest]) (*connect.Response[JoinResponse], error) {
	return c.createSession.CallUnary(ctx, req)
}

func (c *SessionServiceClient) JoinSession(ctx context.Context, req *connect.Request[JoinSessionRequest]) (*connect.Response[JoinResponse], error) {
	return c.joinSession.CallUnary(ctx, req)
}

func (c *SessionServiceClient) GetSession(ctx context.Context, req *connect.Request[GetSessionRequest]) (*connect.Response[GetSessionResponse], error) {
	return c.getSession.CallUnary(ctx, req)
}

func (c *SessionServiceClient) AddParticipant(ctx context.Context, req *connect.Request[AddParticipantRequest]) (*connect.Response[AddParticipantResponse], error) {
	return c.addParticipant.CallUnary(ctx, req)
}

func (c *SessionServiceClient) RemoveParticipant(ctx context.Context, req *connect.Request[RemoveParticipantRequest]) (*connect.Response[MutationResponse], error) {
	return c.removeParticipant.CallUnary(ctx, req)
}

func (c *SessionServiceClient) UpdateSettings(ctx context.Context, req *connect.Request[UpdateSettingsRequest]) (*connect.Response[UpdateSettingsResponse], error) {
	return c.updateSettings.CallUnary(ctx, req)
}

func (c *SessionServiceClient) AddItem(ctx context.Context, req *connect.Request[AddItemRequest]) (*connect.Response[ItemResponse], error) {
	return c.addItem.CallUnary(ctx, req)
}

func (c *SessionServiceClient) EditItem(ctx context.Context, req *connect.Request[EditItemRequest]) (*connect.Response[ItemResponse], error) {
	return c.editItem.CallUnary(ctx, req)
}

func (c *SessionServiceClient) DeleteItem(ctx context.Context, req *connect.Request[DeleteItemRequest]) (*connect.Response[MutationResponse], error) {
	return c.deleteItem.CallUnary(ctx, req)
}

func (c *SessionServiceClient) ToggleAssignment(ctx context.Context, req *connect.Request[ToggleAssignmentRequest]) (*connect.Response[ToggleAssignmentResponse], error) {
	return c.toggleAssignment.CallUnary(ctx, req)
}

func (c *SessionServiceClient) GetSettlement(ctx context.Context, req *connect.Request[GetSettlementRequest]) (*connect.Response[GetSettlementResponse], error) {
	return c.getSettlement.CallUnary(ctx, req)
}

func (c *SessionServiceClient) Subscribe(ctx context.Context, req *connect.Request[SubscribeRequest]) (*connect.ServerStreamForClient[models.Event], error) {
	return c.subscribe.CallServerStream(ctx, req)
}
