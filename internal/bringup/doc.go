// Package bringup runs an ordered list of initialization stages and keeps the
// device either fully up or fully rolled back.
//
// Each stage that succeeds and carries a Cleanup has that cleanup recorded in
// a closer.Ledger before the next stage begins. When a stage fails, the
// ledger is drained so earlier stages are undone in reverse order, and the
// failed stage's own cleanup is never run. After a successful run nothing is
// drained until Shutdown is called.
//
// Usage:
//
//	orch := bringup.New(bringup.WithObserver(func(ev bringup.Event) {
//		fmt.Println(ev.Type, ev.Stage)
//	}))
//	err := orch.Run(ctx, []bringup.Stage{
//		{Name: "gpio", Action: initGPIO, Cleanup: resetGPIO},
//		{Name: "nvs", Action: initNVS, Cleanup: closeNVS},
//	})
//	var stageErr *bringup.StageError
//	if errors.As(err, &stageErr) {
//		fmt.Println(bringup.TroubleshootingHint(stageErr.Kind))
//	}
package bringup
