package data

import (
	"errors"

	"github.com/stellar/anchor-deposits-processor/db"
)

type Models struct {
	Transactions *TransactionModel
	Heartbeats   *HeartbeatModel

	DBConnectionPool db.DBConnectionPool
}

func NewModels(dbConnectionPool db.DBConnectionPool) (*Models, error) {
	if dbConnectionPool == nil {
		return nil, errors.New("dbConnectionPool is required for NewModels")
	}

	return &Models{
		Transactions:     NewTransactionModel(dbConnectionPool),
		Heartbeats:       NewHeartbeatModel(dbConnectionPool),
		DBConnectionPool: dbConnectionPool,
	}, nil
}
