package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dujiao-next/settlement/internal/config"
	"github.com/dujiao-next/settlement/internal/constants"
	"github.com/dujiao-next/settlement/internal/logger"
	"github.com/dujiao-next/settlement/internal/metrics"
	"github.com/dujiao-next/settlement/internal/models"
	"github.com/dujiao-next/settlement/internal/queue"
	"github.com/dujiao-next/settlement/internal/repository"

	"gorm.io/gorm"
)

// SettlementStages 支付确认后需要执行的阶段
var SettlementStages = []string{
	constants.SettlementStageCommission,
	constants.SettlementStageRankEvaluate,
	constants.SettlementStageNotify,
}

// SettlementService 结算编排：佣金分发、等级评估与通知，按 (订单, 阶段) 出箱任务执行
type SettlementService struct {
	orderRepo    repository.OrderRepository
	userRepo     repository.UserRepository
	taskRepo     repository.SettlementTaskRepository
	commissions  repository.CommissionRepository
	settingSvc   *CommissionSettingService
	walker       *ReferralWalker
	ledger       CommissionLedger
	rankSvc      *RankService
	notifier     *NotificationService
	queueClient  *queue.Client
	cfg          config.SettlementConfig
	syncDispatch bool
}

// CommissionStageResult 佣金阶段结果
type CommissionStageResult struct {
	OrderID  uint                `json:"order_id"`
	Credited []models.Commission `json:"credited"`
	Existing int                 `json:"existing"`
	Failed   int                 `json:"failed"`
}

// NewSettlementService 创建结算编排服务
func NewSettlementService(
	orderRepo repository.OrderRepository,
	userRepo repository.UserRepository,
	taskRepo repository.SettlementTaskRepository,
	commissions repository.CommissionRepository,
	settingSvc *CommissionSettingService,
	walker *ReferralWalker,
	ledger CommissionLedger,
	rankSvc *RankService,
	notifier *NotificationService,
	queueClient *queue.Client,
	cfg config.SettlementConfig,
) *SettlementService {
	return &SettlementService{
		orderRepo:   orderRepo,
		userRepo:    userRepo,
		taskRepo:    taskRepo,
		commissions: commissions,
		settingSvc:  settingSvc,
		walker:      walker,
		ledger:      ledger,
		rankSvc:     rankSvc,
		notifier:    notifier,
		queueClient: queueClient,
		cfg:         cfg,
	}
}

// SetSyncDispatch 同步执行派发的阶段（命令行工具与测试使用）
func (s *SettlementService) SetSyncDispatch(enabled bool) {
	s.syncDispatch = enabled
}

// EnsureTasksTx 在支付确认事务内登记全部结算阶段
func (s *SettlementService) EnsureTasksTx(tx *gorm.DB, orderID uint) error {
	repo := s.taskRepo.WithTx(tx)
	for _, stage := range SettlementStages {
		if _, err := repo.Ensure(orderID, stage); err != nil {
			return err
		}
	}
	return nil
}

// Dispatch 派发结算阶段：队列可用时入队，否则后台执行；派发失败只记录日志，由补偿扫描重放。
// 未指定阶段时只派发佣金阶段，等级评估与通知在佣金阶段结束后接续派发
func (s *SettlementService) Dispatch(orderID uint, stages ...string) {
	if len(stages) == 0 {
		stages = []string{constants.SettlementStageCommission}
	}
	for _, stage := range stages {
		if s.syncDispatch {
			if err := s.RunStage(context.Background(), orderID, stage); err != nil {
				logger.Settlement(orderID, stage).Warnw("settlement_stage_failed", "error", err)
			}
			continue
		}
		if s.queueClient != nil && s.queueClient.Enabled() {
			if err := s.queueClient.EnqueueSettlementStage(queue.SettlementStagePayload{OrderID: orderID, Stage: stage}); err != nil {
				logger.Settlement(orderID, stage).Warnw("settlement_enqueue_failed", "error", err)
			}
			continue
		}
		go s.runDetached(orderID, stage)
	}
}

func (s *SettlementService) runDetached(orderID uint, stage string) {
	defer func() {
		if r := recover(); r != nil {
			logger.Settlement(orderID, stage).Errorw("settlement_stage_panic", "panic", fmt.Sprint(r))
		}
	}()
	if err := s.RunStage(context.Background(), orderID, stage); err != nil {
		logger.Settlement(orderID, stage).Warnw("settlement_stage_failed", "error", err)
	}
}

// RunStage 执行单个阶段；已完成或已中止的阶段直接跳过，重复执行依赖各阶段自身幂等。
// 等级评估与通知须等佣金阶段结束，否则返回 ErrSettlementStageWaiting 且任务保持原状态
func (s *SettlementService) RunStage(ctx context.Context, orderID uint, stage string) error {
	if !isSettlementStage(stage) {
		return fmt.Errorf("%w: %s", ErrSettlementStageUnknown, stage)
	}
	log := logger.Settlement(orderID, stage)
	task, err := s.taskRepo.Ensure(orderID, stage)
	if err != nil {
		return err
	}
	if isTerminalTask(task) {
		log.Debugw("settlement_stage_skip", "status", task.Status)
		metrics.ObserveStage(stage, metrics.OutcomeSkipped, 0)
		return nil
	}
	if stage != constants.SettlementStageCommission {
		settled, err := s.commissionSettled(orderID)
		if err != nil {
			return err
		}
		if !settled {
			log.Debugw("settlement_stage_deferred")
			metrics.ObserveStage(stage, metrics.OutcomeDeferred, 0)
			return fmt.Errorf("%w: %s", ErrSettlementStageWaiting, stage)
		}
	}
	affected, err := s.taskRepo.MarkRunning(task.ID, time.Now().Add(-s.staleAfter()))
	if err != nil {
		return err
	}
	if affected == 0 {
		log.Debugw("settlement_stage_skip_claimed")
		metrics.ObserveStage(stage, metrics.OutcomeSkipped, 0)
		return nil
	}

	started := time.Now()
	runErr := s.execStage(ctx, orderID, stage)
	if runErr == nil {
		metrics.ObserveStage(stage, metrics.OutcomeDone, time.Since(started))
		if err := s.taskRepo.MarkDone(task.ID); err != nil {
			log.Warnw("settlement_task_mark_done_failed", "error", err)
			return err
		}
		log.Infow("settlement_stage_done", "attempt", task.Attempts+1)
		s.dispatchFollowUps(orderID, stage)
		return nil
	}

	if errors.Is(runErr, ErrReferralCycleDetected) {
		// 推荐链成环：本订单不分佣，也不重试
		log.Errorw("settlement_cycle_detected", "error", runErr)
		metrics.ObserveStage(stage, metrics.OutcomeAborted, time.Since(started))
		if err := s.taskRepo.MarkFailed(task.ID, constants.SettlementTaskStatusAborted, runErr.Error()); err != nil {
			log.Warnw("settlement_task_mark_aborted_failed", "error", err)
			return nil
		}
		s.dispatchFollowUps(orderID, stage)
		return nil
	}

	log.Warnw("settlement_stage_error", "attempt", task.Attempts+1, "error", runErr)
	metrics.ObserveStage(stage, metrics.OutcomeFailed, time.Since(started))
	if err := s.taskRepo.MarkFailed(task.ID, constants.SettlementTaskStatusFailed, runErr.Error()); err != nil {
		log.Warnw("settlement_task_mark_failed_failed", "error", err)
		return runErr
	}
	if s.exhausted(task.Attempts + 1) {
		// 佣金阶段重试耗尽后不再阻塞后续阶段
		log.Errorw("settlement_stage_exhausted", "attempt", task.Attempts+1)
		s.dispatchFollowUps(orderID, stage)
	}
	return runErr
}

// dispatchFollowUps 佣金阶段结束后接续派发等级评估与通知，保证等级晋升不影响本单佣金倍率
func (s *SettlementService) dispatchFollowUps(orderID uint, stage string) {
	if stage != constants.SettlementStageCommission {
		return
	}
	s.Dispatch(orderID, constants.SettlementStageRankEvaluate, constants.SettlementStageNotify)
}

// commissionSettled 佣金阶段已完成、已中止或重试耗尽
func (s *SettlementService) commissionSettled(orderID uint) (bool, error) {
	task, err := s.taskRepo.Get(orderID, constants.SettlementStageCommission)
	if err != nil {
		return false, err
	}
	if task == nil {
		return false, nil
	}
	if isTerminalTask(task) {
		return true, nil
	}
	return task.Status == constants.SettlementTaskStatusFailed && s.exhausted(task.Attempts), nil
}

func (s *SettlementService) exhausted(attempts int) bool {
	return s.cfg.MaxAttempts > 0 && attempts >= s.cfg.MaxAttempts
}

func (s *SettlementService) staleAfter() time.Duration {
	return time.Duration(s.cfg.OutboxStaleSeconds) * time.Second
}

func isTerminalTask(task *models.SettlementTask) bool {
	return task.Status == constants.SettlementTaskStatusDone || task.Status == constants.SettlementTaskStatusAborted
}

func (s *SettlementService) execStage(ctx context.Context, orderID uint, stage string) error {
	switch stage {
	case constants.SettlementStageCommission:
		_, err := s.RunCommissionStage(orderID)
		return err
	case constants.SettlementStageRankEvaluate:
		return s.runRankStage(orderID)
	case constants.SettlementStageNotify:
		return s.runNotifyStage(ctx, orderID)
	default:
		return fmt.Errorf("%w: %s", ErrSettlementStageUnknown, stage)
	}
}

// RunCommissionStage 遍历推荐链并逐个收益人入账；单个收益人失败不影响已入账的其他收益人
func (s *SettlementService) RunCommissionStage(orderID uint) (*CommissionStageResult, error) {
	order, err := s.loadSettledOrder(orderID)
	if err != nil {
		return nil, err
	}
	result := &CommissionStageResult{OrderID: orderID}
	purchaser, err := s.userRepo.GetByID(order.UserID)
	if err != nil {
		return nil, err
	}
	if purchaser == nil {
		return nil, fmt.Errorf("%w: purchaser %d", ErrUserNotFound, order.UserID)
	}
	if purchaser.ReferrerID == nil {
		return result, nil
	}

	settings, err := s.settingSvc.ListActive()
	if err != nil {
		return nil, err
	}
	if len(settings) == 0 {
		logger.Settlement(orderID, constants.SettlementStageCommission).Warnw("settlement_no_active_levels")
		return result, nil
	}
	hops, err := s.walker.Walk(purchaser, settings)
	if err != nil {
		return nil, err
	}
	ranks, err := s.rankSvc.List()
	if err != nil {
		return nil, err
	}

	var errs []error
	for _, hop := range hops {
		multiplier := RankMultiplier(findRank(ranks, hop.Earner.CurrentRankID))
		amount := CalculateCommission(order.TotalAmount.Decimal, hop.Percentage, multiplier)
		commission, created, err := s.ledger.Credit(CommissionCredit{
			OrderID:      order.ID,
			EarnerUserID: hop.Earner.ID,
			FromUserID:   purchaser.ID,
			Level:        hop.Level,
			BaseAmount:   order.TotalAmount.Decimal,
			Percentage:   hop.Percentage,
			Multiplier:   multiplier,
			Amount:       amount,
		})
		if err != nil {
			result.Failed++
			logger.Settlement(orderID, constants.SettlementStageCommission).Errorw("ledger_write_failed",
				"earner_user_id", hop.Earner.ID,
				"level", hop.Level,
				"amount", amount.String(),
				"error", err,
			)
			errs = append(errs, fmt.Errorf("earner %d level %d: %w", hop.Earner.ID, hop.Level, err))
			continue
		}
		if !created {
			result.Existing++
			continue
		}
		result.Credited = append(result.Credited, *commission)
		metrics.CommissionCredited(commission.Level, commission.Amount.Decimal)
	}
	return result, errors.Join(errs...)
}

// runRankStage 评估下单用户及其直接上级
func (s *SettlementService) runRankStage(orderID uint) error {
	order, err := s.loadSettledOrder(orderID)
	if err != nil {
		return err
	}
	purchaser, err := s.userRepo.GetByID(order.UserID)
	if err != nil {
		return err
	}
	if purchaser == nil {
		return fmt.Errorf("%w: purchaser %d", ErrUserNotFound, order.UserID)
	}
	targets := []uint{purchaser.ID}
	if purchaser.ReferrerID != nil && *purchaser.ReferrerID != purchaser.ID {
		targets = append(targets, *purchaser.ReferrerID)
	}
	var errs []error
	for _, userID := range targets {
		if _, err := s.rankSvc.Evaluate(userID); err != nil {
			if errors.Is(err, ErrUserNotFound) {
				continue
			}
			logger.Settlement(orderID, constants.SettlementStageRankEvaluate).Warnw("rank_evaluate_failed",
				"user_id", userID,
				"error", err,
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// runNotifyStage 请求订单确认与本单全部正数佣金的到账通知，去重键保证重放不重复登记
func (s *SettlementService) runNotifyStage(_ context.Context, orderID uint) error {
	order, err := s.loadSettledOrder(orderID)
	if err != nil {
		return err
	}
	var errs []error
	if err := s.notifier.RequestOrderConfirmation(order); err != nil {
		errs = append(errs, fmt.Errorf("order confirmation: %w", err))
	}
	commissions, err := s.commissions.ListByOrder(orderID)
	if err != nil {
		return errors.Join(append(errs, err)...)
	}
	for i := range commissions {
		commission := &commissions[i]
		if !commission.Amount.Decimal.IsPositive() {
			continue
		}
		if err := s.notifier.RequestCommissionAlert(commission); err != nil {
			logger.Settlement(orderID, constants.SettlementStageNotify).Warnw("commission_alert_request_failed",
				"earner_user_id", commission.EarnerUserID,
				"error", err,
			)
			errs = append(errs, fmt.Errorf("commission alert %d: %w", commission.ID, err))
		}
	}
	return errors.Join(errs...)
}

func (s *SettlementService) loadSettledOrder(orderID uint) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	for _, status := range constants.SettledOrderStatuses {
		if order.Status == status {
			return order, nil
		}
	}
	return nil, fmt.Errorf("%w: order %d is %s", ErrInvalidOrderState, orderID, order.Status)
}

// Replay 管理端重放：重置全部阶段并从佣金阶段重新派发，已入账的收益人不会重复入账
func (s *SettlementService) Replay(orderID uint) ([]models.SettlementTask, error) {
	if _, err := s.loadSettledOrder(orderID); err != nil {
		return nil, err
	}
	for _, stage := range SettlementStages {
		if _, err := s.taskRepo.Ensure(orderID, stage); err != nil {
			return nil, err
		}
		if err := s.taskRepo.Reset(orderID, stage); err != nil {
			return nil, err
		}
	}
	logger.Infow("settlement_replay_requested", "order_id", orderID)
	s.Dispatch(orderID)
	return s.taskRepo.ListByOrder(orderID)
}

// ListTasks 查询订单的结算任务
func (s *SettlementService) ListTasks(orderID uint) ([]models.SettlementTask, error) {
	return s.taskRepo.ListByOrder(orderID)
}

// SweepStale 重新派发滞留或失败且未超出重试上限的任务
func (s *SettlementService) SweepStale(_ context.Context) (int, error) {
	stale := s.staleAfter()
	tasks, err := s.taskRepo.ListStale(repository.SettlementTaskSweepFilter{
		Statuses: []string{
			constants.SettlementTaskStatusPending,
			constants.SettlementTaskStatusFailed,
			constants.SettlementTaskStatusRunning,
		},
		UpdatedBefore: time.Now().Add(-stale),
		MaxAttempts:   s.cfg.MaxAttempts,
		Limit:         s.cfg.OutboxBatchSize,
	})
	if err != nil {
		return 0, err
	}
	for _, task := range tasks {
		logger.Settlement(task.OrderID, task.Stage).Infow("settlement_sweep_redispatch",
			"status", task.Status,
			"attempts", task.Attempts,
		)
		s.Dispatch(task.OrderID, task.Stage)
	}
	metrics.OutboxRedispatched(len(tasks))
	return len(tasks), nil
}

func isSettlementStage(stage string) bool {
	for _, item := range SettlementStages {
		if item == stage {
			return true
		}
	}
	return false
}
