package election

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/Conflux-Chain/go-conflux-util/dlock"
	"github.com/Conflux-Chain/go-conflux-util/store/mysql"
	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

var elecConfig = Config{
	Lease: 3 * time.Second,
	Retry: 500 * time.Millisecond,
	Renew: 1 * time.Second,
}

// Please set the following environments before running tests:
// `TEST_DLOCK_MYSQL_HOST`: MySQL database host;
// `TEST_DLOCK_MYSQL_USER`: MySQL database username;
// `TEST_DLOCK_MYSQL_PWD`:  MySQL database password;
// `TEST_DLOCK_MYSQL_DB`:   MySQL database database.
func setupMysqlBackend(t *testing.T) *dlock.MySQLBackend {
	host := os.Getenv("TEST_DLOCK_MYSQL_HOST")
	dbn := os.Getenv("TEST_DLOCK_MYSQL_DB")
	if len(host) == 0 || len(dbn) == 0 {
		t.SkipNow()
	}

	conf := mysql.Config{
		Host:     host,
		Database: dbn,
		Username: os.Getenv("TEST_DLOCK_MYSQL_USER"),
		Password: os.Getenv("TEST_DLOCK_MYSQL_PWD"),
	}
	defaults.SetDefaults(&conf)

	db := conf.MustOpenOrCreate(&dlock.Dlock{})
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	return dlock.NewMySQLBackend(db)
}

func TestElectionKey(t *testing.T) {
	assert.Equal(t, "ocean:scan:1", ElectionKey(1))
	assert.Equal(t, "ocean:scan:8996", ElectionKey(8996))
}

func TestNoopLeaderManager(t *testing.T) {
	lm := &noopLeaderManager{}
	assert.True(t, lm.Await(context.Background()))
	assert.NoError(t, lm.Extend(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, lm.Await(ctx))
}

func TestLeaderManagerExclusiveScan(t *testing.T) {
	backend := setupMysqlBackend(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		next    int64
		scanned []int64
	)

	dlm := dlock.NewLockManager(backend)
	for i := 0; i < 20; i++ {
		conf := elecConfig
		conf.ID = fmt.Sprintf("node%d", i)
		lm := NewDlockLeaderManager(dlm, conf, ElectionKey(1), logrus.StandardLogger())

		wg.Add(1)
		go func() {
			defer wg.Done()

			go lm.Campaign(ctx)
			defer lm.Stop()

			for lm.Await(ctx) {
				// drop out randomly
				if rand.Intn(100) >= 85 {
					return
				}

				mu.Lock()
				block := next
				mu.Unlock()

				time.Sleep(time.Duration(rand.Intn(500)) * time.Millisecond)

				if err := lm.Extend(ctx); err != nil {
					continue
				}

				mu.Lock()
				if block == next {
					scanned = append(scanned, block)
					next++
				}
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	for i := range scanned {
		assert.Equal(t, int64(i), scanned[i])
	}
}
