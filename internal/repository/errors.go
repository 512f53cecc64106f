package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrDuplicateKey 唯一索引冲突
var ErrDuplicateKey = errors.New("duplicate key")

func translateError(err error) error {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
		return ErrDuplicateKey
	}
	return err
}
