package keystore_test

import (
	"errors"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/portal/pkg/gateway"
	"github.com/papercomputeco/portal/pkg/keystore"
	testutils "github.com/papercomputeco/portal/pkg/utils/test"
)

func names(entries []keystore.Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Name)
	}
	return out
}

func serverKey(id, name, tenant string, active bool) gateway.APIKeyEntry {
	k := gateway.APIKeyEntry{ID: id, Tenant: tenant, Active: active}
	if name != "" {
		k.Name = &name
	}
	return k
}

var _ = Describe("Store", func() {
	var (
		backend *keystore.MemoryBackend
		store   *keystore.Store
	)

	BeforeEach(func() {
		backend = keystore.NewMemoryBackend()
		var err error
		store, err = keystore.New(backend, keystore.WithClock(testutils.NewFakeClock()))
		Expect(err).NotTo(HaveOccurred())
	})

	It("requires a backend", func() {
		_, err := keystore.New(nil)
		Expect(err).To(HaveOccurred())
	})

	Describe("Upsert", func() {
		It("orders entries most recent first", func() {
			Expect(store.Upsert("alpha", "sk-a")).To(Succeed())
			Expect(store.Upsert("beta", "sk-b")).To(Succeed())

			Expect(names(store.Entries())).To(Equal([]string{"beta", "alpha"}))
		})

		It("replaces an entry of the same name and moves it to the front", func() {
			Expect(store.Upsert("alpha", "sk-old")).To(Succeed())
			Expect(store.Upsert("beta", "sk-b")).To(Succeed())
			Expect(store.Upsert("alpha", "sk-new")).To(Succeed())

			Expect(names(store.Entries())).To(Equal([]string{"alpha", "beta"}))
			secret, ok := store.Get("alpha")
			Expect(ok).To(BeTrue())
			Expect(secret).To(Equal("sk-new"))
		})

		It("is idempotent for the same name and secret", func() {
			Expect(store.Upsert("alpha", "sk-a")).To(Succeed())
			once := store.Entries()
			Expect(store.Upsert("alpha", "sk-a")).To(Succeed())

			Expect(store.Entries()).To(Equal(once))
		})

		It("evicts the oldest entry past the retention cap", func() {
			for i := range keystore.DefaultRetention + 1 {
				Expect(store.Upsert(fmt.Sprintf("key-%02d", i), "sk")).To(Succeed())
			}

			entries := store.Entries()
			Expect(entries).To(HaveLen(keystore.DefaultRetention))
			Expect(entries[0].Name).To(Equal("key-12"))
			_, ok := store.Get("key-00")
			Expect(ok).To(BeFalse())
		})

		It("honors a custom retention", func() {
			s, err := keystore.New(keystore.NewMemoryBackend(), keystore.WithRetention(2))
			Expect(err).NotTo(HaveOccurred())
			for _, n := range []string{"a", "b", "c"} {
				Expect(s.Upsert(n, "sk")).To(Succeed())
			}
			Expect(names(s.Entries())).To(Equal([]string{"c", "b"}))
		})

		It("rejects blank names and secrets", func() {
			Expect(store.Upsert("", "sk")).NotTo(Succeed())
			Expect(store.Upsert("alpha", "")).NotTo(Succeed())
			Expect(store.Entries()).To(BeEmpty())
		})

		It("leaves the store unchanged when the save fails", func() {
			Expect(store.Upsert("alpha", "sk-a")).To(Succeed())
			backend.SaveErr = errors.New("disk full")

			Expect(store.Upsert("beta", "sk-b")).To(MatchError("disk full"))
			Expect(names(store.Entries())).To(Equal([]string{"alpha"}))
		})

		It("persists through the backend", func() {
			Expect(store.Put(keystore.Entry{Name: "alpha", Secret: "sk-a", Tenant: "acme"})).To(Succeed())

			reloaded, err := keystore.New(backend)
			Expect(err).NotTo(HaveOccurred())
			Expect(reloaded.Entries()).To(HaveLen(1))
			Expect(reloaded.Entries()[0].Tenant).To(Equal("acme"))
			Expect(reloaded.Entries()[0].CreatedAt.IsZero()).To(BeFalse())
		})
	})

	Describe("Remove", func() {
		It("drops only the named entry", func() {
			Expect(store.Upsert("alpha", "sk-a")).To(Succeed())
			Expect(store.Upsert("beta", "sk-b")).To(Succeed())

			Expect(store.Remove("alpha")).To(Succeed())
			Expect(store.Remove("missing")).To(Succeed())

			Expect(names(store.Entries())).To(Equal([]string{"beta"}))
		})
	})

	Describe("ActiveEntries", func() {
		It("is the intersection of cache and active set in cache order", func() {
			for _, n := range []string{"a", "b", "c", "d"} {
				Expect(store.Upsert(n, "sk-"+n)).To(Succeed())
			}
			active := keystore.ActiveNames([]gateway.APIKeyEntry{
				serverKey("1", "a", "t1", true),
				serverKey("2", "c", "t2", true),
				serverKey("3", "d", "t3", false),
				serverKey("4", "z", "t4", true),
			})

			Expect(names(store.ActiveEntries(active))).To(Equal([]string{"c", "a"}))
		})

		It("is empty for an empty active set", func() {
			Expect(store.Upsert("a", "sk")).To(Succeed())
			Expect(store.ActiveEntries(nil)).To(BeEmpty())
		})
	})

	Describe("Reconcile", func() {
		It("lists every active server key and flags retrievable ones", func() {
			Expect(store.Upsert("mine", "sk-mine")).To(Succeed())
			Expect(store.Upsert("gone", "sk-gone")).To(Succeed())

			opts := store.Reconcile([]gateway.APIKeyEntry{
				serverKey("k1", "mine", "acme", true),
				serverKey("k2", "", "legacy-tenant", true),
				serverKey("k3", "gone", "acme", false),
			})

			Expect(opts).To(Equal([]keystore.KeyOption{
				{ID: "k1", Name: "mine", Tenant: "acme", Retrievable: true},
				{ID: "k2", Name: "legacy-tenant", Tenant: "legacy-tenant", Retrievable: false},
			}))
		})

		It("never fabricates entries for unknown names", func() {
			store.Reconcile([]gateway.APIKeyEntry{serverKey("k1", "elsewhere", "t", true)})

			_, ok := store.Get("elsewhere")
			Expect(ok).To(BeFalse())
		})
	})

	Describe("Resolve", func() {
		BeforeEach(func() {
			Expect(store.Upsert("alpha", "sk-a")).To(Succeed())
		})

		It("returns the secret of a cached active key", func() {
			Expect(store.Resolve("alpha", keystore.NameSet{"alpha": {}})).To(Equal("sk-a"))
		})

		It("reports a cached key that is no longer active", func() {
			_, err := store.Resolve("alpha", keystore.NameSet{})

			Expect(err).To(MatchError(keystore.ErrKeyStale))
			_, ok := store.Get("alpha")
			Expect(ok).To(BeTrue(), "stale entries are not evicted")
		})

		It("reports a key that was never cached", func() {
			_, err := store.Resolve("beta", keystore.NameSet{"beta": {}})
			Expect(err).To(MatchError(keystore.ErrKeyNotStored))
		})
	})

	Describe("admin credential", func() {
		It("stores and clears the admin key", func() {
			Expect(store.AdminKey()).To(BeEmpty())
			Expect(store.SetAdminKey("adm-1")).To(Succeed())
			Expect(store.AdminKey()).To(Equal("adm-1"))

			Expect(store.ClearAdminKey()).To(Succeed())
			Expect(store.AdminKey()).To(BeEmpty())
		})

		It("is dropped by Clear along with the keys", func() {
			Expect(store.SetAdminKey("adm-1")).To(Succeed())
			Expect(store.Upsert("a", "sk")).To(Succeed())

			Expect(store.Clear()).To(Succeed())

			Expect(store.AdminKey()).To(BeEmpty())
			Expect(store.Entries()).To(BeEmpty())
		})
	})
})

var _ = DescribeTable("Mask",
	func(secret, want string) {
		Expect(keystore.Mask(secret)).To(Equal(want))
	},
	Entry("empty", "", ""),
	Entry("short", "abc", "***"),
	Entry("long", "sk-live-1234567890", "...567890"),
)
