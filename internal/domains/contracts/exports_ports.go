package contracts

import contractports "aim-chat/go-backend/internal/domains/contracts/ports"

type IdentityAPI = contractports.IdentityAPI
type GroupAPI = contractports.GroupAPI
type NetworkAPI = contractports.NetworkAPI
type DaemonService = contractports.DaemonService
type IdentityDomain = contractports.IdentityDomain
type CategorizedError = contractports.CategorizedError
