package interfaces

import (
	"github.com/google/wire"

	"prepd-server/services/realtime-api/internal/interfaces/httpserver"
	"prepd-server/services/realtime-api/internal/interfaces/httpserver/handlers"
	"prepd-server/services/realtime-api/internal/interfaces/httpserver/routes"
)

// InterfacesProvider provides all interface dependencies.
var InterfacesProvider = wire.NewSet(
	handlers.HandlerProvider,
	routes.RouteProvider,
	httpserver.New,
)
