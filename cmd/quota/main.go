// Quota checks and spends per-key budgets against a shared store from the
// command line.
//
// Usage:
//
//	# Validate a budgets file
//	quota validate --config budgets.yaml
//
//	# Spend one unit of user1's read budget in Redis
//	quota spend --name user1 --event read --redis-addr localhost:6379
//
//	# Spend three times against a shared SQLite file
//	quota spend --backend sqlite --db quota.db --name user1 --event write --count 3
//
//	# Delete expired counters from a SQLite file
//	quota sweep --db quota.db
package main

func main() {
	Execute()
}
