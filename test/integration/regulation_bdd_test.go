//go:build integration

package integration

import (
	"context"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/Luny-Nytro/discipline-daemon-sub000/internal/clock"
	"github.com/Luny-Nytro/discipline-daemon-sub000/internal/daemon"
	"github.com/Luny-Nytro/discipline-daemon-sub000/internal/domain"
	"github.com/Luny-Nytro/discipline-daemon-sub000/internal/infra"
	"github.com/Luny-Nytro/discipline-daemon-sub000/internal/policy"
	"github.com/Luny-Nytro/discipline-daemon-sub000/internal/usecase"
	"github.com/Luny-Nytro/discipline-daemon-sub000/test/fixtures"
)

const (
	aliceUID      = domain.AccountID(1000)
	alicePassword = "alice-real-password"
)

// stack is a running store, scheduler, enforcer and service on a fake OS.
type stack struct {
	store           *infra.Store
	accounts        *usecase.AccountTable
	service         *usecase.RegulationService
	blockedPassword string
	stop            func()
}

func startStack(dataDir string, key []byte, fakeOS *fixtures.FakeOperatingSystem, clk clock.Clock) *stack {
	logger := zap.NewNop()
	store, err := infra.OpenStore(dataDir, key)
	Expect(err).NotTo(HaveOccurred())
	blocked, err := infra.EnsureBlockedPassword(store)
	Expect(err).NotTo(HaveOccurred())
	accounts, err := usecase.LoadAccountTable(context.Background(), store)
	Expect(err).NotTo(HaveOccurred())

	scheduler := daemon.NewScheduler(daemon.SchedulerConfig{Workers: 2, HeartbeatInterval: time.Minute}, logger)
	enforcer := usecase.NewEnforcer(accounts, fakeOS, store, scheduler, clk, blocked, logger)
	service := usecase.NewRegulationService(accounts, store, fakeOS, enforcer, clk, clock.Second, logger)
	enforcer.StartAll()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = scheduler.Run(ctx, enforcer)
	}()

	return &stack{
		store:           store,
		accounts:        accounts,
		service:         service,
		blockedPassword: blocked,
		stop: func() {
			cancel()
			<-done
			Expect(store.Close()).To(Succeed())
		},
	}
}

func (s *stack) status(id domain.AccountID) func() domain.ApplicationStatus {
	return func() domain.ApplicationStatus {
		snap, err := s.service.Account(context.Background(), id)
		if err != nil {
			return domain.StatusUnknown
		}
		return snap.Status
	}
}

var _ = Describe("Login regulation", func() {
	var (
		ctx     context.Context
		dataDir string
		key     []byte
		fakeOS  *fixtures.FakeOperatingSystem
		clk     *clock.MockClock
		s       *stack
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		dataDir, err = os.MkdirTemp("", "discipline-integration-*")
		Expect(err).NotTo(HaveOccurred())
		key, err = infra.GenerateKey()
		Expect(err).NotTo(HaveOccurred())

		fakeOS = fixtures.NewFakeOperatingSystem()
		fakeOS.AddUser(aliceUID, "alice", alicePassword)
		clk = clock.NewMockClock(time.Date(2024, time.March, 4, 10, 0, 0, 0, time.Local))
		s = startStack(dataDir, key, fakeOS, clk)
	})

	AfterEach(func() {
		if s != nil {
			s.stop()
		}
		os.RemoveAll(dataDir)
	})

	manageAlice := func() {
		_, err := s.service.ManageAccount(ctx, "alice", alicePassword, clock.Second)
		Expect(err).NotTo(HaveOccurred())
		Eventually(s.status(aliceUID), 5*time.Second).Should(Equal(domain.StatusAllowed))
	}

	blockAlice := func(protection clock.Duration) {
		pid, err := s.service.CreatePolicy(ctx, aliceUID, "all day")
		Expect(err).NotTo(HaveOccurred())
		_, err = s.service.CreateRule(ctx, aliceUID, pid, policy.AllTheTime{})
		Expect(err).NotTo(HaveOccurred())
		Expect(s.service.IncreasePolicyProtection(ctx, aliceUID, pid, protection)).To(Succeed())
	}

	Describe("managing an account", func() {
		It("keeps the real password while nothing blocks", func() {
			manageAlice()

			Expect(fakeOS.Password("alice")).To(Equal(alicePassword))
			Expect(fakeOS.LoggedIn("alice")).To(BeTrue())
		})

		It("rejects unknown accounts", func() {
			_, err := s.service.ManageAccount(ctx, "mallory", "pw", 0)
			Expect(err).To(MatchError(usecase.ErrNoSuchAccount))
		})
	})

	Describe("an enabled blocking policy", func() {
		BeforeEach(func() {
			manageAlice()
			blockAlice(clock.Hour)
		})

		It("swaps the password and ends the session", func() {
			Eventually(s.status(aliceUID), 5*time.Second).Should(Equal(domain.StatusLoginBlockedAndSessionTerminated))
			Expect(fakeOS.Password("alice")).To(Equal(s.blockedPassword))
			Expect(fakeOS.LoggedIn("alice")).To(BeFalse())
			Expect(fakeOS.Terminations("alice")).To(Equal(1))
		})

		It("cannot be escaped while protected", func() {
			Eventually(s.status(aliceUID), 5*time.Second).Should(Equal(domain.StatusLoginBlockedAndSessionTerminated))

			Expect(s.service.DisableRegulationApplication(ctx, aliceUID)).To(MatchError(policy.ErrPolicyIsStillEnabled))
			Expect(s.service.UnmanageAccount(ctx, aliceUID)).To(MatchError(policy.ErrPolicyIsStillEnabled))
			snap, err := s.service.Account(ctx, aliceUID)
			Expect(err).NotTo(HaveOccurred())
			pid := snap.Regulation.Policies()[0].ID
			Expect(s.service.DeletePolicy(ctx, aliceUID, pid)).To(MatchError(policy.ErrPolicyIsStillEnabled))
			Expect(s.service.IncreasePolicyProtection(ctx, aliceUID, pid, 3*clock.Week)).
				To(MatchError(policy.ErrWouldBeEffectiveForTooLong))
		})

		It("restores the real password once protection runs out", func() {
			Eventually(s.status(aliceUID), 5*time.Second).Should(Equal(domain.StatusLoginBlockedAndSessionTerminated))

			clk.Advance(2 * time.Hour)

			Eventually(s.status(aliceUID), 5*time.Second).Should(Equal(domain.StatusAllowed))
			Expect(fakeOS.Password("alice")).To(Equal(alicePassword))
			Expect(s.service.DisableRegulationApplication(ctx, aliceUID)).To(Succeed())
		})
	})

	Describe("OS failures", func() {
		It("retries until the password change goes through", func() {
			fakeOS.FailNextPasswordChanges(2)

			_, err := s.service.ManageAccount(ctx, "alice", alicePassword, clock.Second)
			Expect(err).NotTo(HaveOccurred())

			Consistently(s.status(aliceUID), 1500*time.Millisecond).ShouldNot(Equal(domain.StatusAllowed))
			Eventually(s.status(aliceUID), 5*time.Second).Should(Equal(domain.StatusAllowed))
		})
	})

	Describe("restarting the daemon", func() {
		It("reloads accounts and policies and re-applies them", func() {
			manageAlice()
			blockAlice(clock.Hour)
			Eventually(s.status(aliceUID), 5*time.Second).Should(Equal(domain.StatusLoginBlockedAndSessionTerminated))
			blocked := s.blockedPassword

			s.stop()
			fakeOS.Login("alice")
			s = startStack(dataDir, key, fakeOS, clk)

			Expect(s.blockedPassword).To(Equal(blocked))
			snap, err := s.service.Account(ctx, aliceUID)
			Expect(err).NotTo(HaveOccurred())
			Expect(snap.Regulation.Policies()).To(HaveLen(1))
			Expect(snap.Action).To(Equal(policy.ActionBlock))

			Eventually(s.status(aliceUID), 5*time.Second).Should(Equal(domain.StatusLoginBlockedAndSessionTerminated))
			Expect(fakeOS.LoggedIn("alice")).To(BeFalse())
		})
	})
})
