package entitlement

// MonthsDays переводит купленное количество месяцев в дни оплаченного
// доступа. Месяц считается как 30 дней. Само продление выполняет
// хранилище: новая дата отсчитывается от max(now, paid_until), поэтому
// повторные зачисления не сокращают уже оплаченный период.
func MonthsDays(months int) int {
	return months * 30
}

// BonusDays возвращает количество бонусных дней для пригласившего
// участника по таблице "купленные месяцы -> дни". Неизвестная длительность
// бонуса не даёт.
func BonusDays(table map[int]int, months int) int {
	if table == nil {
		return 0
	}
	return table[months]
}
