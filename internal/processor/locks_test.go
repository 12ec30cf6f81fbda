package processor

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_accountLockMap_forAccount(t *testing.T) {
	lockMap := newAccountLockMap()

	lock1 := lockMap.forAccount("GA7QYNF7SOWQ3GLR2BGMZEHXAVIRZA4KVWLTJJFC7MGXUA74P7UJVSGZ")
	lock2 := lockMap.forAccount("GA7QYNF7SOWQ3GLR2BGMZEHXAVIRZA4KVWLTJJFC7MGXUA74P7UJVSGZ")
	lock3 := lockMap.forAccount("GCBIRB7Q5T53H4L6P5QSI3O6LPD5MBWGM5GHE7A5NY4XT5OT4VCOEZFX")

	assert.Same(t, lock1, lock2)
	assert.NotSame(t, lock1, lock3)
}

func Test_accountLockMap_concurrentAccess(t *testing.T) {
	lockMap := newAccountLockMap()
	const account = "GA7QYNF7SOWQ3GLR2BGMZEHXAVIRZA4KVWLTJJFC7MGXUA74P7UJVSGZ"

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lock := lockMap.forAccount(account)
			lock.Lock()
			defer lock.Unlock()
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
}

func Test_newLockRegistry(t *testing.T) {
	registry := newLockRegistry()
	require.NotNil(t, registry.SourceAccounts)
	require.NotNil(t, registry.DestinationAccounts)

	srcLock := registry.SourceAccounts.forAccount("GA7QYNF7SOWQ3GLR2BGMZEHXAVIRZA4KVWLTJJFC7MGXUA74P7UJVSGZ")
	dstLock := registry.DestinationAccounts.forAccount("GA7QYNF7SOWQ3GLR2BGMZEHXAVIRZA4KVWLTJJFC7MGXUA74P7UJVSGZ")
	assert.NotSame(t, srcLock, dstLock)
}
