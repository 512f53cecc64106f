package repository

import (
	"Parley/internal/model"
	"context"
	"database/sql/driver"
	"errors"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	mysqldrv "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// argRecorder 记录驱动实际收到的参数，SET 列顺序由 gorm 决定，断言时只看取值
type argRecorder struct {
	mu     sync.Mutex
	values []driver.Value
}

func (r *argRecorder) ConvertValue(v any) (driver.Value, error) {
	dv, err := driver.DefaultParameterConverter.ConvertValue(v)
	r.mu.Lock()
	r.values = append(r.values, dv)
	r.mu.Unlock()
	return dv, err
}

func (r *argRecorder) seen() []driver.Value {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]driver.Value(nil), r.values...)
}

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, *argRecorder) {
	t.Helper()
	rec := &argRecorder{}
	sqlDB, mock, err := sqlmock.New(sqlmock.ValueConverterOption(rec))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Discard,
	})
	require.NoError(t, err)
	return db, mock, rec
}

func conversationRows(unread string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "is_group", "participants", "last_message_time", "unread_counts"}).
		AddRow(uint64(5), false, []byte("[1,2,3]"), int64(100), []byte(unread))
}

const lockConversationSQL = "SELECT \\* FROM `conversations` WHERE `conversations`.`id` = \\? .*FOR UPDATE"

func TestRecordMessageIncrementsUnderRowLock(t *testing.T) {
	db, mock, rec := newMockDB(t)
	repo := NewConversationRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery(lockConversationSQL).WillReturnRows(conversationRows(`{"2":4}`))
	mock.ExpectExec("UPDATE `conversations` SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	persisted := false
	conv, err := repo.RecordMessage(context.Background(), 5, 1, "msg-1", 200, func(ctx context.Context) error {
		persisted = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, persisted)
	assert.Equal(t, map[uint64]int{2: 5, 3: 1}, conv.UnreadCounts)
	assert.Equal(t, int64(200), conv.LastMessageTime)
	require.NotNil(t, conv.LastMessageID)
	assert.Equal(t, "msg-1", *conv.LastMessageID)

	// 发送者计数不写入，其余成员 +1
	assert.Contains(t, rec.seen(), driver.Value(`{"2":5,"3":1}`))
	assert.Contains(t, rec.seen(), driver.Value("msg-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordMessageRollsBackWhenPersistFails(t *testing.T) {
	db, mock, _ := newMockDB(t)
	repo := NewConversationRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery(lockConversationSQL).WillReturnRows(conversationRows(`{}`))
	mock.ExpectExec("UPDATE `conversations` SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	storeErr := errors.New("mongo unavailable")
	_, err := repo.RecordMessage(context.Background(), 5, 1, "msg-1", 200, func(ctx context.Context) error {
		return storeErr
	})
	assert.ErrorIs(t, err, storeErr)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResetUnread(t *testing.T) {
	t.Run("clears caller counter only", func(t *testing.T) {
		db, mock, rec := newMockDB(t)
		repo := NewConversationRepo(db)

		mock.ExpectBegin()
		mock.ExpectQuery(lockConversationSQL).WillReturnRows(conversationRows(`{"2":5,"3":1}`))
		mock.ExpectExec("UPDATE `conversations` SET").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		conv, err := repo.ResetUnread(context.Background(), 5, 2)
		require.NoError(t, err)
		assert.Equal(t, map[uint64]int{2: 0, 3: 1}, conv.UnreadCounts)
		assert.Contains(t, rec.seen(), driver.Value(`{"2":0,"3":1}`))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already zero skips write", func(t *testing.T) {
		db, mock, _ := newMockDB(t)
		repo := NewConversationRepo(db)

		mock.ExpectBegin()
		mock.ExpectQuery(lockConversationSQL).WillReturnRows(conversationRows(`{"2":0}`))
		mock.ExpectCommit()

		_, err := repo.ResetUnread(context.Background(), 5, 2)
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUpdateOnlineStatus(t *testing.T) {
	t.Run("online keeps last_seen monotonic", func(t *testing.T) {
		db, mock, _ := newMockDB(t)
		repo := NewUserRepo(db)

		mock.ExpectExec("UPDATE `users` SET `is_online`=\\?,`last_seen`=GREATEST\\(last_seen, \\?\\),`updated_at`=\\? WHERE id = \\?").
			WithArgs(true, int64(5000), sqlmock.AnyArg(), uint64(7)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.UpdateOnlineStatus(context.Background(), 7, true, 5000))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("offline leaves last_seen untouched", func(t *testing.T) {
		db, mock, _ := newMockDB(t)
		repo := NewUserRepo(db)

		mock.ExpectExec("UPDATE `users` SET `is_online`=\\?,`updated_at`=\\? WHERE id = \\?").
			WithArgs(false, sqlmock.AnyArg(), uint64(7)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.UpdateOnlineStatus(context.Background(), 7, false, 5000))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestMarkStaleOfflineOnlyFlipsFlag(t *testing.T) {
	db, mock, _ := newMockDB(t)
	repo := NewUserRepo(db)

	mock.ExpectExec("UPDATE `users` SET `is_online`=\\?,`updated_at`=\\? WHERE is_online = \\? AND last_seen < \\?").
		WithArgs(false, sqlmock.AnyArg(), true, int64(70001)).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.MarkStaleOffline(context.Background(), 70001)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUserTranslatesDuplicateKey(t *testing.T) {
	db, mock, _ := newMockDB(t)
	repo := NewUserRepo(db)

	mock.ExpectExec("INSERT INTO `users`").
		WillReturnError(&mysqldrv.MySQLError{Number: 1062, Message: "Duplicate entry"})

	err := repo.CreateUser(context.Background(), &model.User{ExternalID: "user_a", Name: "Alice"})
	assert.ErrorIs(t, err, ErrDuplicateKey)
	assert.NoError(t, mock.ExpectationsWereMet())
}
