package repository

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const (
	MethodReportIncident  = "reportIncident"
	MethodGetIncident     = "getIncident"
	MethodIncidents       = "incidents"
	MethodIncidentCounter = "incidentCounter"

	EventIncidentReported = "IncidentReported"
)

// IncidentFields はイベントおよび getIncident の戻り値の並び
var IncidentFields = []string{"id", "description", "reportedBy", "timestamp"}

const incidentContractABI = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": false, "internalType": "uint256", "name": "id", "type": "uint256"},
      {"indexed": false, "internalType": "string", "name": "description", "type": "string"},
      {"indexed": false, "internalType": "address", "name": "reportedBy", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "timestamp", "type": "uint256"}
    ],
    "name": "IncidentReported",
    "type": "event"
  },
  {
    "inputs": [{"internalType": "uint256", "name": "_id", "type": "uint256"}],
    "name": "getIncident",
    "outputs": [
      {"internalType": "uint256", "name": "", "type": "uint256"},
      {"internalType": "string", "name": "", "type": "string"},
      {"internalType": "address", "name": "", "type": "address"},
      {"internalType": "uint256", "name": "", "type": "uint256"}
    ],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "incidentCounter",
    "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
    "name": "incidents",
    "outputs": [
      {"internalType": "uint256", "name": "id", "type": "uint256"},
      {"internalType": "string", "name": "description", "type": "string"},
      {"internalType": "address", "name": "reportedBy", "type": "address"},
      {"internalType": "uint256", "name": "timestamp", "type": "uint256"}
    ],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [{"internalType": "string", "name": "_description", "type": "string"}],
    "name": "reportIncident",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  }
]`

var (
	parsedABI     abi.ABI
	parsedABIErr  error
	parsedABIOnce sync.Once
)

// IncidentContractABI はインシデント台帳コントラクトのABIを返す
func IncidentContractABI() (abi.ABI, error) {
	parsedABIOnce.Do(func() {
		parsedABI, parsedABIErr = abi.JSON(strings.NewReader(incidentContractABI))
		if parsedABIErr != nil {
			parsedABIErr = fmt.Errorf("failed to parse incident contract abi: %w", parsedABIErr)
		}
	})
	return parsedABI, parsedABIErr
}
