package daemonserver

import (
	"aim-chat/go-backend/internal/adapters/rpc"
	"aim-chat/go-backend/internal/bootstrap/wakuconfig"
	"aim-chat/go-backend/internal/composition/daemonservice"
)

// NewRPCServerWithOptions wires the daemon service and the JSON-RPC
// transport together.
func NewRPCServerWithOptions(rpcAddr, configPath, dataDir string) (*rpc.Server, error) {
	svc, err := daemonservice.NewServiceForDaemonWithDataDir(wakuconfig.LoadFromPath(configPath), dataDir)
	if err != nil {
		return nil, err
	}
	return rpc.NewServerWithService(rpcAddr, svc), nil
}
